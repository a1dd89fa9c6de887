package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/npc-mind/internal/dialogue"
	"github.com/jwebster45206/npc-mind/internal/worker"
	"github.com/jwebster45206/npc-mind/pkg/npc"
	"github.com/jwebster45206/npc-mind/pkg/prompts"
)

const (
	PlaceHolderText = "Type a command, or help..."
	dialogueTimeout = 60 * time.Second
)

type entryKind int

const (
	entryCommand entryKind = iota
	entryOutput
	entryNPC
	entryError
)

type entry struct {
	kind entryKind
	text string
}

// ConsoleUI is the BubbleTea model for the NPC sandbox.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	agent        *npc.Agent
	dispatcher   *dialogue.Dispatcher // nil when no API key is configured
	rating       string
	log          []entry
	lastLine     string
	logViewport  viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	loading      bool

	showQuitModal bool
	progressTick  int
}

type dialogueMsg struct {
	result dialogue.Result
}

type progressTickMsg struct{}

var (
	logPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	outputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey
)

func NewConsoleUI(agent *npc.Agent, dispatcher *dialogue.Dispatcher, rating string) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	logVp := viewport.New(50, 20)
	logVp.MouseWheelEnabled = true

	return ConsoleUI{
		agent:        agent,
		dispatcher:   dispatcher,
		rating:       rating,
		textarea:     ta,
		logViewport:  logVp,
		metaViewport: viewport.New(20, 20),
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return textarea.Blink
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		logWidth := int(float64(m.width)*0.7) - 4
		metaWidth := m.width - logWidth - 6
		m.logViewport.Width = logWidth - 2
		m.logViewport.Height = m.height - 7
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.textarea.SetWidth(logWidth - 4)
		m.ready = true
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()
			cmd := m.handleInput(input)
			m.refresh()
			return m, cmd
		}

	case dialogueMsg:
		m.loading = false
		res := msg.result
		if res.Err != nil {
			m.append(entryError, "Dialogue failed: "+res.Err.Error())
		} else {
			m.lastLine = res.Lines.NPCResponse
			m.agent.Decisions.RecordMemory(worker.LastDialogueKey, res.Lines.NPCResponse)
			m.agent.Touch()
			m.append(entryNPC, formatLines(m.agent.Name, res))
		}
		m.refresh()
		return m, nil

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.refresh()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.logViewport, vpCmd = m.logViewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

func (m *ConsoleUI) append(kind entryKind, text string) {
	m.log = append(m.log, entry{kind: kind, text: text})
}

// handleInput runs one line of input. Only say returns a command.
func (m *ConsoleUI) handleInput(input string) tea.Cmd {
	m.append(entryCommand, input)
	name, rest := splitCommand(input)

	switch name {
	case "help":
		m.append(entryOutput, helpText)
		return nil

	case "copy":
		if m.lastLine == "" {
			m.append(entryError, "Nothing to copy yet")
			return nil
		}
		if err := clipboard.WriteAll(m.lastLine); err != nil {
			m.append(entryError, "Copy failed: "+err.Error())
			return nil
		}
		m.append(entryOutput, "Copied the last line to the clipboard")
		return nil

	case "say":
		return m.say(rest)
	}

	out, err := runCommand(m.agent, name, rest)
	if err != nil {
		m.append(entryError, err.Error())
		return nil
	}
	m.append(entryOutput, out)
	return nil
}

func (m *ConsoleUI) say(line string) tea.Cmd {
	if m.dispatcher == nil {
		m.append(entryError, "Dialogue is unavailable: no API key is configured")
		return nil
	}

	msgs, err := prompts.New().
		WithAgent(m.agent).
		WithPlayerLine(line).
		WithContentRating(m.rating).
		Build()
	if err != nil {
		m.append(entryError, err.Error())
		return nil
	}

	m.loading = true
	m.progressTick = 0

	// the dispatcher copies what it needs; the agent stays usable meanwhile
	ctx, cancel := context.WithTimeout(context.Background(), dialogueTimeout)
	ch := m.dispatcher.Request(ctx, m.agent.ID, msgs)
	wait := func() tea.Msg {
		defer cancel()
		return dialogueMsg{result: <-ch}
	}
	return tea.Batch(wait, progressTick())
}

func formatLines(name string, res dialogue.Result) string {
	var b strings.Builder
	b.WriteString(speakerStyle.Render(name+":") + " " + res.Lines.NPCResponse)
	if res.Lines.ActionDescription != "" {
		b.WriteString("\n" + promptStyle.Render("*"+res.Lines.ActionDescription+"*"))
	}
	if res.Lines.NPCFeelings != "" {
		b.WriteString("\n" + promptStyle.Render("feels: "+res.Lines.NPCFeelings))
	}
	return b.String()
}

// refresh re-renders both panels for the current size.
func (m *ConsoleUI) refresh() {
	if !m.ready {
		return
	}
	width := m.logViewport.Width - 6
	if width < 10 {
		width = 10
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("NPC MIND") + "\n\n")
	content.WriteString("Drive the NPC with commands. Type help for the list.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")

	for _, e := range m.log {
		text := wordwrap.String(e.text, width)
		switch e.kind {
		case entryCommand:
			content.WriteString(userStyle.Render("> ") + text)
		case entryOutput:
			content.WriteString(outputStyle.Render(text))
		case entryNPC:
			content.WriteString(text)
		case entryError:
			content.WriteString(errorStyle.Render(text))
		}
		content.WriteString("\n\n")
	}
	if m.loading {
		content.WriteString(m.renderProgressBar())
	}

	m.logViewport.SetContent(content.String())
	m.logViewport.GotoBottom()
	m.metaViewport.SetContent(writeMetadata(m.agent, m.dispatcher))
}

func writeMetadata(a *npc.Agent, d *dialogue.Dispatcher) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("NPC") + "\n\n")

	content.WriteString("Name:\n" + a.Name + "\n\n")
	content.WriteString("ID:\n" + a.ID.String()[:8] + "...\n\n")
	content.WriteString(fmt.Sprintf("State:\n%s\n\n", a.Decisions.State()))
	content.WriteString(fmt.Sprintf("Emotion:\n%s\n\n", a.Emotions.Emotion()))

	t := a.Personality.Traits()
	content.WriteString("Personality:\n")
	content.WriteString(fmt.Sprintf("• O %.2f  C %.2f\n", t.Openness, t.Conscientiousness))
	content.WriteString(fmt.Sprintf("• E %.2f  A %.2f\n", t.Extraversion, t.Agreeableness))
	content.WriteString(fmt.Sprintf("• N %.2f\n\n", t.Neuroticism))

	content.WriteString("Actions:\n")
	for _, act := range a.Decisions.Catalog() {
		content.WriteString("• " + act.Name + "\n")
	}
	content.WriteString("\n")

	content.WriteString(fmt.Sprintf("Memories: %d\n", a.Decisions.MemoryCount()))
	content.WriteString(fmt.Sprintf("Feelings: %d\n", a.Emotions.MemoryCount()))
	content.WriteString(fmt.Sprintf("Entities: %d\n", a.Knowledge.EntityCount()))
	content.WriteString(fmt.Sprintf("Links:    %d\n\n", a.Knowledge.RelationshipCount()))

	content.WriteString("Dialogue:\n")
	if d == nil {
		content.WriteString("off\n")
	} else {
		content.WriteString(d.ModelName() + "\n")
	}
	return content.String()
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}
	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("The NPC is not saved when the sandbox closes.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	logWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - logWidth - 6

	logPanel := logPanelStyle.Width(logWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.logViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", logWidth-4)),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, logPanel, metaPanel)
}

// renderProgressBar draws the animated bar shown while dialogue is generating
func (m ConsoleUI) renderProgressBar() string {
	usable := m.logViewport.Width - 6
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓")
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
