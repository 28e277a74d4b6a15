package compose

import (
	"fmt"
	"net/mail"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/theme"
)

// Values are the fields of an outbound run as entered in the form.
type Values struct {
	// ManualEmail, when set, sends to this address only.
	ManualEmail string
	CC          string
	Subject     string
	Body        string
	Attachment  string
	AutoSend    bool
}

// SubmittedMsg is dispatched when the user confirms the form.
type SubmittedMsg struct {
	Values Values
}

// CancelMsg is dispatched when the user cancels the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	manualEmail string
	cc          string
	subject     string
	body        string
	attachment  string
	autoSend    bool
}

// Model is the Bubble Tea model for the compose & send form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	width  int
	height int
}

// New creates a new compose form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Start initializes the form with defaults, typically the configured
// dispatch settings and the manual address typed in the console.
func (m *Model) Start(defaults Values) tea.Cmd {
	m.fb.manualEmail = defaults.ManualEmail
	m.fb.cc = defaults.CC
	m.fb.subject = defaults.Subject
	m.fb.body = defaults.Body
	m.fb.attachment = defaults.Attachment
	m.fb.autoSend = defaults.AutoSend
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the compose form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.handleSubmit()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the compose form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "Send RFQ to all vendors"
	if strings.TrimSpace(m.fb.manualEmail) != "" {
		titleText = "Send RFQ to " + strings.TrimSpace(m.fb.manualEmail)
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render(titleText) + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Manual email").
				Description("Leave empty to send to every vendor in the registry").
				Placeholder("vendor@example.com").
				Value(&m.fb.manualEmail).
				Validate(ValidateOptionalAddress),
			huh.NewInput().
				Title("CC").
				Placeholder("a@x.com; b@y.com").
				Value(&m.fb.cc),
			huh.NewInput().
				Title("Subject").
				Value(&m.fb.subject).
				Validate(validateRequired("Subject")),
			huh.NewText().
				Title("Body").
				Description("{VendorName}, {VendorEmail}, {SupplierName}, {VendorAddress}").
				Value(&m.fb.body),
			huh.NewInput().
				Title("Attachment").
				Placeholder("path to a file (optional)").
				Value(&m.fb.attachment),
			huh.NewConfirm().
				Title("Send immediately?").
				Affirmative("Send").
				Negative("Draft only").
				Value(&m.fb.autoSend),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) handleSubmit() tea.Cmd {
	v := m.values()
	return func() tea.Msg { return SubmittedMsg{Values: v} }
}

func (m Model) values() Values {
	return Values{
		ManualEmail: strings.TrimSpace(m.fb.manualEmail),
		CC:          strings.TrimSpace(m.fb.cc),
		Subject:     strings.TrimSpace(m.fb.subject),
		Body:        m.fb.body,
		Attachment:  strings.TrimSpace(m.fb.attachment),
		AutoSend:    m.fb.autoSend,
	}
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

// ValidateOptionalAddress accepts an empty string or a single bare email
// address.
func ValidateOptionalAddress(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || !strings.Contains(s, "@") {
		return fmt.Errorf("enter a single address like vendor@example.com")
	}
	return nil
}
