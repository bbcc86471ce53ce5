// Command xdevmon is a live TUI feed of device-attach and device-detach
// events read from a monitor's event stream.
package main

import (
	"fmt"
	"os"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	getopt "github.com/pborman/getopt/v2"

	"github.com/go-xdev/xdev"
	"github.com/go-xdev/xdev/internal/logging"
)

var (
	attachStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	detachStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// deviceItem adapts a decoded device-tree event into a bubbles/list.Item.
type deviceItem struct {
	name, driver, event, parent, xml string
}

func (i deviceItem) Title() string {
	style := attachStyle
	if i.event == xdev.EventDetach {
		style = detachStyle
	}
	return style.Render(fmt.Sprintf("%-16s %s", i.name, i.event))
}

func (i deviceItem) Description() string {
	return fmt.Sprintf("driver=%s parent=%s", i.driver, i.parent)
}

func (i deviceItem) FilterValue() string { return i.name }

type model struct {
	list    list.Model
	events  <-chan deviceItem
	status  string
	width   int
	height  int
}

type deviceMsg deviceItem

func waitForEvent(events <-chan deviceItem) tea.Cmd {
	return func() tea.Msg {
		return deviceMsg(<-events)
	}
}

func newModel(events <-chan deviceItem) model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "xdevmon — live device tree"
	return model{list: l, events: events, status: "waiting for events..."}
}

func (m model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(msg.Width, msg.Height-2)
		return m, nil

	case deviceMsg:
		cmds := []tea.Cmd{m.list.InsertItem(0, deviceItem(msg)), waitForEvent(m.events)}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "y":
			if item, ok := m.list.SelectedItem().(deviceItem); ok {
				if err := clipboard.WriteAll(item.xml); err == nil {
					m.status = "copied " + item.name + "'s properties to clipboard"
				} else {
					m.status = "clipboard error: " + err.Error()
				}
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	return m.list.View() + "\n" + statusStyle.Render(m.status+"  (y: copy properties, q: quit)")
}

func main() {
	optDevice := getopt.StringLong("device", 'd', "", "driver-control device path (default: platform default)")
	optVerbose := getopt.BoolLong("verbose", 'v', "enable debug logging")
	optHelp := getopt.BoolLong("help", 'h', "show this help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	logOutput, err := os.OpenFile("xdevmon.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err == nil {
		level := logging.LevelWarn
		if *optVerbose {
			level = logging.LevelDebug
		}
		logging.SetDefault(logging.NewLogger(&logging.Config{Level: level, Output: logOutput}))
		defer logOutput.Close()
	}

	ctx, err := xdev.Open(*optDevice)
	if err != nil {
		fmt.Fprintf(os.Stderr, "xdevmon: open: %v\n", err)
		os.Exit(1)
	}
	defer ctx.Unref()

	mon, err := xdev.NewMonitor(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "xdevmon: new monitor: %v\n", err)
		os.Exit(1)
	}
	defer mon.Unref()

	if err := mon.EnableReceiving(); err != nil {
		fmt.Fprintf(os.Stderr, "xdevmon: enable receiving: %v\n", err)
		os.Exit(1)
	}

	events := make(chan deviceItem)
	go func() {
		for {
			dev, err := mon.ReceiveDevice()
			if err != nil {
				logging.Default().Error("xdevmon: receive failed, feed stopped", "error", err)
				close(events)
				return
			}
			events <- deviceItem{
				name:   dev.Devname(),
				driver: dev.Driver(),
				event:  dev.Event(),
				parent: dev.Parent(),
				xml:    dev.Externalize(),
			}
			dev.Unref()
		}
	}()

	if _, err := tea.NewProgram(newModel(events), tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "xdevmon: %v\n", err)
		os.Exit(1)
	}
}
