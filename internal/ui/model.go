// Package ui is the terminal front end: a bubbletea swipe deck over a triage
// session, followed by the story video form and its progress.
package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"

	"github.com/fpang/swipe-story/internal/ingest"
	"github.com/fpang/swipe-story/internal/session"
	"github.com/fpang/swipe-story/internal/store"
	"github.com/fpang/swipe-story/internal/story"
	"github.com/fpang/swipe-story/internal/triage"
)

type State int

const (
	StatePick State = iota
	StateLoading
	StateTriaging
	StateSummary
	StateForm
	StateGenerating
	StateDone
)

func (s State) String() string {
	switch s {
	case StatePick:
		return "Pick"
	case StateLoading:
		return "Loading"
	case StateTriaging:
		return "Triaging"
	case StateSummary:
		return "Summary"
	case StateForm:
		return "Form"
	case StateGenerating:
		return "Generating"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// DefaultPollInterval is how often the progress screen re-reads the video
// task.
const DefaultPollInterval = 2 * time.Second

// Options configures a Model.
type Options struct {
	Sessions *session.Manager
	// Videos submits story videos. Nil, or no Services, disables the video
	// step.
	Videos   *story.Client
	Services []string

	// Dir is the photo folder. Empty starts on the folder picker screen.
	Dir        string
	DirOptions ingest.DirOptions

	PollInterval time.Duration

	// PickDirectory and CopyText default to a zenity dialog and the system
	// clipboard.
	PickDirectory func() (string, error)
	CopyText      func(string) error
}

type Model struct {
	state  State
	width  int
	height int
	styles Styles
	keys   KeyMap

	help     help.Model
	spinner  spinner.Model
	progress progress.Model

	opts Options
	dir  string
	snap session.Snapshot

	form     *VideoForm
	service  string
	videoCfg story.VideoConfig
	task     *store.VideoTask

	statusMessage string
	messageType   string
}

// NewModel creates the model. It starts loading opts.Dir on Init.
func NewModel(opts Options) *Model {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.PickDirectory == nil {
		opts.PickDirectory = pickDirectory
	}
	if opts.CopyText == nil {
		opts.CopyText = clipboard.WriteAll
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorPrimary)

	m := &Model{
		state:    StatePick,
		styles:   DefaultStyles(),
		keys:     DefaultKeyMap(),
		help:     help.New(),
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		opts:     opts,
		videoCfg: story.DefaultVideoConfig(),
	}
	if opts.Dir != "" {
		m.state = StateLoading
		m.dir = opts.Dir
	}
	return m
}

func pickDirectory() (string, error) {
	return zenity.SelectFile(
		zenity.Directory(),
		zenity.Title("Select photo folder"),
	)
}

// PhotosLoadedMsg is sent once a folder has been scanned into a session.
type PhotosLoadedMsg struct {
	Dir      string
	Snapshot session.Snapshot
}

// DirectoryPickedMsg carries the folder chosen in the picker.
type DirectoryPickedMsg struct {
	Dir string
}

type ErrorMsg struct {
	Err error
}

// CopiedMsg reports the result of copying the story script.
type CopiedMsg struct {
	Err error
}

// VideoSubmittedMsg is sent once the vendor has accepted the video task.
type VideoSubmittedMsg struct {
	Task *store.VideoTask
}

// VideoStatusMsg carries a fresh read of the video task.
type VideoStatusMsg struct {
	Task *store.VideoTask
	Err  error
}

type pollTickMsg struct{}

func (m *Model) Init() tea.Cmd {
	if m.state == StateLoading {
		return tea.Batch(m.spinner.Tick, m.load(m.dir))
	}
	return m.spinner.Tick
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.state == StateForm {
		if _, ok := msg.(tea.WindowSizeMsg); !ok {
			return m.updateForm(msg)
		}
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.progress.Width = min(max(msg.Width-8, 10), 60)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case DirectoryPickedMsg:
		m.state = StateLoading
		m.dir = msg.Dir
		m.statusMessage = ""
		return m, m.load(msg.Dir)

	case PhotosLoadedMsg:
		m.dir = msg.Dir
		m.snap = msg.Snapshot
		m.state = StateTriaging
		m.setStatus(fmt.Sprintf("Loaded %d photos", msg.Snapshot.Total), "")

	case ErrorMsg:
		m.setStatus(msg.Err.Error(), "error")
		switch m.state {
		case StateLoading:
			m.state = StatePick
		case StateGenerating:
			m.state = StateSummary
		}

	case CopiedMsg:
		if msg.Err != nil {
			m.setStatus(fmt.Sprintf("Copy failed: %v", msg.Err), "error")
		} else {
			m.setStatus("Story script copied to clipboard", "success")
		}

	case VideoSubmittedMsg:
		m.task = msg.Task
		m.state = StateGenerating
		m.setStatus("Video submitted to "+msg.Task.Service, "")
		return m, m.tick()

	case pollTickMsg:
		if m.state != StateGenerating || m.task == nil {
			return m, nil
		}
		return m, m.pollStatus()

	case VideoStatusMsg:
		if m.state != StateGenerating {
			return m, nil
		}
		if msg.Err != nil {
			log.Warn().Err(msg.Err).Msg("Video status read failed")
			return m, m.tick()
		}
		m.task = msg.Task
		if m.task.Terminal() {
			m.state = StateDone
			m.statusMessage = ""
			return m, nil
		}
		return m, m.tick()
	}

	return m, nil
}

func (m *Model) setStatus(message, kind string) {
	m.statusMessage = message
	m.messageType = kind
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	switch m.state {
	case StatePick:
		if key.Matches(msg, m.keys.Open) {
			m.setStatus("Waiting for the folder picker...", "")
			return m, m.pick()
		}
	case StateTriaging:
		return m.handleTriageKeys(msg)
	case StateSummary, StateDone:
		return m.handleSummaryKeys(msg)
	}
	return m, nil
}

func (m *Model) handleTriageKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Keep):
		m.decide(triage.Keep)
	case key.Matches(msg, m.keys.Delete):
		m.decide(triage.Delete)
	case key.Matches(msg, m.keys.Undo):
		m.undo()
	case key.Matches(msg, m.keys.Restart):
		m.restart()
	}
	return m, nil
}

func (m *Model) handleSummaryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Enter):
		return m, m.startForm()
	case key.Matches(msg, m.keys.Share):
		return m, m.share()
	case key.Matches(msg, m.keys.Undo):
		m.undo()
	case key.Matches(msg, m.keys.Restart):
		m.restart()
	}
	return m, nil
}

func (m *Model) decide(tag triage.Tag) {
	snap, err := m.opts.Sessions.Decide(context.Background(), m.snap.ID, tag)
	if err != nil {
		m.setStatus(err.Error(), "error")
		return
	}
	m.snap = snap
	m.statusMessage = ""
	if snap.Complete {
		m.state = StateSummary
	}
}

func (m *Model) undo() {
	snap, undone, err := m.opts.Sessions.Undo(context.Background(), m.snap.ID)
	if err != nil {
		m.setStatus(err.Error(), "error")
		return
	}
	if !undone {
		m.setStatus("Nothing to undo", "")
		return
	}
	m.snap = snap
	m.state = StateTriaging
	m.setStatus("Undid the last decision", "")
}

func (m *Model) restart() {
	ctx := context.Background()
	items, err := m.opts.Sessions.Items(ctx, m.snap.ID)
	if err == nil {
		m.snap, err = m.opts.Sessions.Reset(ctx, m.snap.ID, items)
	}
	if err != nil {
		m.setStatus(err.Error(), "error")
		return
	}
	m.task = nil
	m.state = StateTriaging
	m.setStatus("Starting over", "")
}

func (m *Model) load(dir string) tea.Cmd {
	sessions, opts := m.opts.Sessions, m.opts.DirOptions
	return func() tea.Msg {
		items, err := ingest.FromDirectory(dir, opts)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		snap, err := sessions.Create(context.Background(), items)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return PhotosLoadedMsg{Dir: dir, Snapshot: snap}
	}
}

func (m *Model) pick() tea.Cmd {
	pickDir := m.opts.PickDirectory
	return func() tea.Msg {
		dir, err := pickDir()
		if errors.Is(err, zenity.ErrCanceled) {
			return ErrorMsg{Err: errors.New("no folder selected")}
		}
		if err != nil {
			return ErrorMsg{Err: fmt.Errorf("folder picker: %w", err)}
		}
		return DirectoryPickedMsg{Dir: dir}
	}
}

// share copies the caption script for the kept photos.
func (m *Model) share() tea.Cmd {
	script := story.BuildScript(m.snap.Stats.Kept, m.videoCfg)
	copyText := m.opts.CopyText
	return func() tea.Msg {
		return CopiedMsg{Err: copyText(script.Text())}
	}
}

func (m *Model) startForm() tea.Cmd {
	if m.opts.Videos == nil || len(m.opts.Services) == 0 {
		m.setStatus("No video service is configured; set an API key such as KLING_API_KEY", "error")
		return nil
	}
	if m.snap.Stats.Kept == 0 {
		m.setStatus("No kept photos to make a video from", "error")
		return nil
	}
	m.form = NewVideoForm(m.opts.Services)
	m.state = StateForm
	m.statusMessage = ""
	return m.form.GetForm().Init()
}

func (m *Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := m.form.GetForm().Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form.form = f
	}

	switch m.form.form.State {
	case huh.StateCompleted:
		result := m.form.Result()
		cfg, err := result.Config()
		if err != nil {
			m.state = StateSummary
			m.setStatus(err.Error(), "error")
			return m, nil
		}
		m.videoCfg = cfg
		m.service = result.Service
		m.state = StateGenerating
		m.task = nil
		m.setStatus("Submitting to "+result.Service+"...", "")
		return m, tea.Batch(m.spinner.Tick, m.submit(result.Service, cfg))
	case huh.StateAborted:
		m.state = StateSummary
		m.setStatus("Video cancelled", "")
		return m, nil
	}
	return m, cmd
}

// submit creates the video task and hands it to a background poller.
func (m *Model) submit(service string, cfg story.VideoConfig) tea.Cmd {
	sessions, videos, id := m.opts.Sessions, m.opts.Videos, m.snap.ID
	return func() tea.Msg {
		ctx := context.Background()
		kept, err := sessions.Kept(ctx, id)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		photos, err := localPhotos(kept)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		task, err := videos.Create(ctx, id, service, story.NewRequest(photos, cfg, nil))
		if err != nil {
			return ErrorMsg{Err: fmt.Errorf("submit video: %w", err)}
		}
		if err := videos.Start(task); err != nil {
			return ErrorMsg{Err: err}
		}
		return VideoSubmittedMsg{Task: task}
	}
}

// localPhotos builds vendor inputs from directory items, whose Ref is a file
// path. Only the first photo's bytes are read.
func localPhotos(kept []triage.Item) ([]story.Photo, error) {
	if len(kept) == 0 {
		return nil, errors.New("no kept photos")
	}
	photos := make([]story.Photo, len(kept))
	for i, it := range kept {
		photos[i] = story.Photo{Name: it.Name, MIMEType: it.MIMEType}
	}
	data, err := os.ReadFile(kept[0].Ref)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", kept[0].Name, err)
	}
	photos[0].Data = data
	return photos, nil
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.opts.PollInterval, func(time.Time) tea.Msg { return pollTickMsg{} })
}

func (m *Model) pollStatus() tea.Cmd {
	videos, id := m.opts.Videos, m.task.ID
	return func() tea.Msg {
		task, err := videos.Status(context.Background(), id)
		return VideoStatusMsg{Task: task, Err: err}
	}
}
