package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Styling
var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#0a84ff")).
			Padding(0, 1)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#30d158")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#ff453a")).
			Padding(0, 1)
)

// Views
const (
	viewMain       = "main"
	viewInventory  = "inventory"
	viewInput      = "input"
	viewShopping   = "shopping"
	viewRecipes    = "recipes"
	viewHistory    = "history"
	viewSuggestion = "suggestion"
)

// inputAction is the mutation a text input will perform
type inputAction struct {
	title  string
	format string
	fields int
	run    func(c *ApiClient, fields []string) (string, error)
}

var inputActions = map[string]inputAction{
	"Add Item": {
		title:  "Add Item",
		format: "<category>,<item>,<amount unit>",
		fields: 3,
		run: func(c *ApiClient, f []string) (string, error) {
			return c.AddItem(f[0], f[1], f[2])
		},
	},
	"Use Item": {
		title:  "Use Item",
		format: "<category>,<item>,<amount>",
		fields: 3,
		run: func(c *ApiClient, f []string) (string, error) {
			return c.UseItem(f[0], f[1], f[2])
		},
	},
	"Remove Item": {
		title:  "Remove Item",
		format: "<category>,<item>",
		fields: 2,
		run: func(c *ApiClient, f []string) (string, error) {
			return c.RemoveItem(f[0], f[1])
		},
	},
	"Mark Leftover": {
		title:  "Mark Leftover",
		format: "<category>,<item>",
		fields: 2,
		run: func(c *ApiClient, f []string) (string, error) {
			return "", c.MarkLeftover(f[0], f[1])
		},
	},
}

// Model defines the application state
type Model struct {
	mainMenu      list.Model
	inventoryView table.Model
	historyView   table.Model
	recipeList    list.Model
	textInput     textinput.Model
	spinner       spinner.Model
	client        *ApiClient
	action        inputAction
	shopping      []string
	suggestion    *Suggestion
	loading       bool
	currentView   string
	status        string
	error         string
}

// item represents a list item
type item struct {
	title, desc string
}

// FilterValue implements list.Item interface
func (i item) FilterValue() string { return i.title }

// Title implements list.Item interface
func (i item) Title() string { return i.title }

// Description implements list.Item interface
func (i item) Description() string { return i.desc }

// Initialize the model
func initialModel() Model {
	// Initialize spinner
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	// Initialize main menu items
	items := []list.Item{
		item{title: "Inventory", desc: "View stock by category"},
		item{title: "Add Item", desc: "Stock an item or replace its quantity"},
		item{title: "Use Item", desc: "Deduct an amount from an item"},
		item{title: "Remove Item", desc: "Delete an item from stock"},
		item{title: "Mark Leftover", desc: "Flag an item for priority use"},
		item{title: "Shopping List", desc: "Items running low"},
		item{title: "Recipes", desc: "Check and cook recipes"},
		item{title: "History", desc: "Latest inventory changes"},
		item{title: "Leftover Ideas", desc: "Suggest a dish that uses up leftovers"},
		item{title: "Exit", desc: "Exit the application"},
	}

	mainMenu := list.New(items, list.NewDefaultDelegate(), 0, 0)
	mainMenu.Title = "Mise Inventory"

	inventoryTable := table.New(
		table.WithColumns([]table.Column{
			{Title: "Category", Width: 15},
			{Title: "Item", Width: 25},
			{Title: "Quantity", Width: 15},
		}),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	historyTable := table.New(
		table.WithColumns([]table.Column{
			{Title: "Date", Width: 20},
			{Title: "Action", Width: 10},
			{Title: "Category", Width: 12},
			{Title: "Item", Width: 20},
			{Title: "Quantity", Width: 12},
		}),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	recipeList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	recipeList.Title = "Recipes"

	ti := textinput.New()
	ti.CharLimit = 156
	ti.Width = 40

	return Model{
		mainMenu:      mainMenu,
		inventoryView: inventoryTable,
		historyView:   historyTable,
		recipeList:    recipeList,
		spinner:       s,
		textInput:     ti,
		client:        NewApiClient(),
		currentView:   viewMain,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tea.EnterAltScreen, checkHealth(m.client))
}

// Update handles UI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.mainMenu.SetSize(msg.Width-h, msg.Height-v)
		m.recipeList.SetSize(msg.Width-h, msg.Height-v-4)
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.currentView != viewInput {
				return m, tea.Quit
			}
		case "esc":
			if m.currentView != viewMain {
				m.currentView = viewMain
				m.textInput.Blur()
				m.error = ""
				return m, nil
			}
		case "enter":
			return m.handleEnter()
		}
	case healthMsg:
		if msg.degraded {
			m.status = errorStyle.Render("Saves are failing; changes are kept in memory only")
		}
		return m, nil
	case inventoryMsg:
		m.loading = false
		m.inventoryView.SetRows(inventoryRows(msg.shelves))
		return m, nil
	case historyMsg:
		m.loading = false
		m.historyView.SetRows(historyRows(msg.entries))
		return m, nil
	case shoppingMsg:
		m.loading = false
		m.shopping = msg.lines
		return m, nil
	case recipesMsg:
		m.loading = false
		m.recipeList.SetItems(recipeItems(msg.recipes))
		return m, nil
	case suggestionMsg:
		m.loading = false
		m.suggestion = msg.suggestion
		return m, nil
	case errorMsg:
		m.loading = false
		m.error = msg.err
		return m, nil
	case confirmMsg:
		m.loading = false
		m.error = ""
		m.status = successStyle.Render(msg.message)
		if msg.warning != "" {
			m.status = errorStyle.Render(msg.warning)
		}
		m.currentView = viewMain
		m.textInput.Blur()
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	switch m.currentView {
	case viewMain:
		m.mainMenu, cmd = m.mainMenu.Update(msg)
	case viewInventory:
		m.inventoryView, cmd = m.inventoryView.Update(msg)
	case viewHistory:
		m.historyView, cmd = m.historyView.Update(msg)
	case viewRecipes:
		m.recipeList, cmd = m.recipeList.Update(msg)
	case viewInput:
		m.textInput, cmd = m.textInput.Update(msg)
	}

	return m, cmd
}

func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	switch m.currentView {
	case viewMain:
		selected, ok := m.mainMenu.SelectedItem().(item)
		if !ok {
			return m, nil
		}
		m.status = ""
		m.error = ""
		if action, ok := inputActions[selected.title]; ok {
			m.action = action
			m.currentView = viewInput
			m.textInput.SetValue("")
			m.textInput.Placeholder = action.format
			m.textInput.Focus()
			return m, textinput.Blink
		}
		m.loading = true
		switch selected.title {
		case "Exit":
			return m, tea.Quit
		case "Inventory":
			m.currentView = viewInventory
			return m, fetchInventory(m.client)
		case "Shopping List":
			m.currentView = viewShopping
			return m, fetchShoppingList(m.client)
		case "Recipes":
			m.currentView = viewRecipes
			return m, fetchRecipes(m.client)
		case "History":
			m.currentView = viewHistory
			return m, fetchHistory(m.client)
		case "Leftover Ideas":
			m.currentView = viewSuggestion
			m.suggestion = nil
			return m, suggestLeftovers(m.client)
		}
	case viewInput:
		fields := splitFields(m.textInput.Value())
		if len(fields) != m.action.fields {
			m.error = "Expected " + m.action.format
			return m, nil
		}
		m.loading = true
		return m, runAction(m.client, m.action, fields)
	case viewRecipes:
		if selected, ok := m.recipeList.SelectedItem().(recipeItem); ok {
			m.loading = true
			return m, applyRecipe(m.client, selected.name)
		}
	}
	return m, nil
}

// View renders the UI
func (m Model) View() string {
	footer := ""
	if m.error != "" {
		footer += "\n" + errorStyle.Render(m.error)
	}
	if m.loading {
		footer += "\n" + m.spinner.View() + " Loading..."
	}

	switch m.currentView {
	case viewMain:
		view := m.mainMenu.View()
		if m.status != "" {
			view += "\n" + m.status
		}
		return docStyle.Render(view + footer)
	case viewInventory:
		return docStyle.Render(titleStyle.Render("Inventory") + "\n\n" + m.inventoryView.View() +
			"\n\nPress 'esc' to go back" + footer)
	case viewHistory:
		return docStyle.Render(titleStyle.Render("History") + "\n\n" + m.historyView.View() +
			"\n\nPress 'esc' to go back" + footer)
	case viewInput:
		help := fmt.Sprintf("\nFormat: %s\nPress 'enter' to submit, 'esc' to cancel\n", m.action.format)
		return docStyle.Render(titleStyle.Render(m.action.title) + "\n\n" + m.textInput.View() + help + footer)
	case viewShopping:
		return docStyle.Render(titleStyle.Render("Shopping List") + "\n\n" + shoppingView(m.shopping) +
			"\nPress 'esc' to go back" + footer)
	case viewRecipes:
		return docStyle.Render(m.recipeList.View() + "\nPress 'enter' to cook the selected recipe, 'esc' to go back" + footer)
	case viewSuggestion:
		return docStyle.Render(titleStyle.Render("Leftover Ideas") + "\n\n" + suggestionView(m.suggestion) +
			"\nPress 'esc' to go back" + footer)
	default:
		return "Loading..."
	}
}

// Custom message types for the tea.Model
type healthMsg struct {
	degraded bool
}

type inventoryMsg struct {
	shelves []Shelf
}

type historyMsg struct {
	entries []HistoryEntry
}

type shoppingMsg struct {
	lines []string
}

type recipesMsg struct {
	recipes []Recipe
}

type suggestionMsg struct {
	suggestion *Suggestion
}

type errorMsg struct {
	err string
}

type confirmMsg struct {
	message string
	warning string
}

// recipeItem represents a recipe in the list
type recipeItem struct {
	name string
	desc string
}

func (i recipeItem) Title() string       { return i.name }
func (i recipeItem) Description() string { return i.desc }
func (i recipeItem) FilterValue() string { return i.name }

func checkHealth(client *ApiClient) tea.Cmd {
	return func() tea.Msg {
		degraded, err := client.CheckHealth()
		if err != nil {
			return errorMsg{err: fmt.Sprintf("API server at %s is not available: %v", client.BaseURL, err)}
		}
		return healthMsg{degraded: degraded}
	}
}

func fetchInventory(client *ApiClient) tea.Cmd {
	return func() tea.Msg {
		shelves, err := client.GetInventory()
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error fetching inventory: %v", err)}
		}
		return inventoryMsg{shelves: shelves}
	}
}

func fetchHistory(client *ApiClient) tea.Cmd {
	return func() tea.Msg {
		entries, err := client.GetHistory(50)
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error fetching history: %v", err)}
		}
		return historyMsg{entries: entries}
	}
}

func fetchShoppingList(client *ApiClient) tea.Cmd {
	return func() tea.Msg {
		lines, err := client.GetShoppingList()
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error fetching shopping list: %v", err)}
		}
		return shoppingMsg{lines: lines}
	}
}

func fetchRecipes(client *ApiClient) tea.Cmd {
	return func() tea.Msg {
		recipes, err := client.GetRecipes()
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error fetching recipes: %v", err)}
		}
		return recipesMsg{recipes: recipes}
	}
}

func applyRecipe(client *ApiClient, name string) tea.Cmd {
	return func() tea.Msg {
		warning, err := client.ApplyRecipe(name)
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error cooking %s: %v", name, err)}
		}
		return confirmMsg{message: fmt.Sprintf("Cooked %s", name), warning: warning}
	}
}

func suggestLeftovers(client *ApiClient) tea.Cmd {
	return func() tea.Msg {
		s, err := client.SuggestLeftovers()
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error getting suggestion: %v", err)}
		}
		return suggestionMsg{suggestion: s}
	}
}

func runAction(client *ApiClient, action inputAction, fields []string) tea.Cmd {
	return func() tea.Msg {
		warning, err := action.run(client, fields)
		if err != nil {
			return errorMsg{err: fmt.Sprintf("%s failed: %v", action.title, err)}
		}
		return confirmMsg{message: action.title + " done", warning: warning}
	}
}

// splitFields splits comma separated input and trims each field
func splitFields(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func inventoryRows(shelves []Shelf) []table.Row {
	var rows []table.Row
	for _, s := range shelves {
		for _, it := range s.Items {
			rows = append(rows, table.Row{s.Category, it.Name, it.Quantity})
		}
	}
	return rows
}

func historyRows(entries []HistoryEntry) []table.Row {
	rows := make([]table.Row, len(entries))
	for i, e := range entries {
		rows[i] = table.Row{e.Date, e.Action, e.Category, e.Item, e.Quantity + " " + e.Unit}
	}
	return rows
}

func recipeItems(recipes []Recipe) []list.Item {
	items := make([]list.Item, len(recipes))
	for i, r := range recipes {
		desc := "All ingredients available"
		if !r.Available {
			missing := make([]string, len(r.Missing))
			for j, mi := range r.Missing {
				missing[j] = mi.Item
			}
			desc = "Missing: " + strings.Join(missing, ", ")
		}
		items[i] = recipeItem{name: r.Name, desc: desc}
	}
	return items
}

func shoppingView(lines []string) string {
	if len(lines) == 0 {
		return "Nothing is running low.\n"
	}
	var b strings.Builder
	for _, l := range lines {
		b.WriteString("• " + l + "\n")
	}
	return b.String()
}

func suggestionView(s *Suggestion) string {
	if s == nil {
		return ""
	}
	view := infoStyle.Render(s.Name) + "\n"
	view += s.Description + "\n\n"
	view += fmt.Sprintf("Ingredients: %s\n", strings.Join(s.Ingredients, ", "))
	view += fmt.Sprintf("Preparation time: %s\n\n", s.PreparationTime)
	for i, step := range s.Instructions {
		view += fmt.Sprintf("%d. %s\n", i+1, step)
	}
	view += fmt.Sprintf("\nSource: %s\n", s.Source)
	return view
}

func main() {
	p := tea.NewProgram(initialModel())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running program: %v", err)
		os.Exit(1)
	}
}
