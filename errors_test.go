package xdev

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessageFormatting(t *testing.T) {
	err := NewError("Scan", CodeInvalidHandle, "nil enumerator")
	assert.Equal(t, "xdev: Scan: nil enumerator", err.Error())

	withErrno := &Error{Op: "Open", Code: CodeChannelError, Errno: syscall.ENOENT, Msg: "no such device"}
	assert.Contains(t, withErrno.Error(), "errno=")
	assert.Contains(t, withErrno.Error(), "Open")
}

func TestErrorIsMatchesByCodeOnly(t *testing.T) {
	a := NewError("Scan", CodeRacyDetach, "child vanished")
	b := NewError("ReceiveDevice", CodeRacyDetach, "different message")
	c := NewError("Scan", CodeDecodeError, "child vanished")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestErrorUnwrapExposesInner(t *testing.T) {
	inner := errors.New("boom")
	wrapped := WrapError("Open", inner)
	assert.Equal(t, inner, errors.Unwrap(wrapped))
}

func TestWrapErrorNilIsNil(t *testing.T) {
	assert.Nil(t, WrapError("Open", nil))
}

func TestWrapErrorPassesThroughStructuredError(t *testing.T) {
	original := NewError("FromDevname", CodeDecodeError, "missing device-driver")
	wrapped := WrapError("Scan", original)
	assert.Equal(t, CodeDecodeError, wrapped.Code)
	assert.Equal(t, "Scan", wrapped.Op)
}

func TestWrapErrorMapsErrnoToCode(t *testing.T) {
	assert.Equal(t, CodeAllocationFailure, WrapError("Open", syscall.ENOMEM).Code)
	assert.Equal(t, CodeInvalidHandle, WrapError("Open", syscall.EINVAL).Code)
	assert.Equal(t, CodeChannelError, WrapError("Open", syscall.EIO).Code)
}

func TestWrapErrorOpaqueErrorBecomesChannelError(t *testing.T) {
	wrapped := WrapError("Open", errors.New("unexpected"))
	assert.Equal(t, CodeChannelError, wrapped.Code)
}

func TestIsCodeMatchesWrappedError(t *testing.T) {
	wrapped := WrapError("Scan", syscall.ENOMEM)
	assert.True(t, IsCode(wrapped, CodeAllocationFailure))
	assert.False(t, IsCode(wrapped, CodeChannelError))
	assert.False(t, IsCode(errors.New("plain"), CodeChannelError))
}

func TestSentinelErrorsAreDistinctFromStructuredCodes(t *testing.T) {
	assert.Equal(t, "invalid handle", ErrInvalidHandle.Error())
	assert.Equal(t, "racy detach", ErrRacyDetach.Error())
}
