package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nickproject/pktwatch/internal/aggregator"
)

// Config TUI 配置
type Config struct {
	Interface string
	Filter    string
	Command   string // 实际执行的抓包命令
	Hostname  string
}

// Model TUI 模型
type Model struct {
	config      Config
	all         []aggregator.FlowEntry
	entries     []aggregator.FlowEntry
	sortMode    aggregator.SortMode
	paused      bool
	filterInput textinput.Model
	filtering   bool
	filterText  string
	selected    int
	width       int
	height      int
	startTime   time.Time
	totalRate   uint64
	packets     uint64
	errors      uint64
	finished    bool
	showHelp    bool
	entriesChan <-chan []aggregator.FlowEntry
}

// 消息类型
type (
	entriesMsg []aggregator.FlowEntry
	closedMsg  struct{}
)

// 表格列
type column struct {
	title string
	width int
	left  bool
	sort  aggregator.SortMode
}

var columns = []column{
	{title: "Flow", width: 44, left: true, sort: -1},
	{title: "Proto", width: 8, left: true, sort: -1},
	{title: "Pkts", width: 8, sort: aggregator.SortByPackets},
	{title: "Rate", width: 12, sort: aggregator.SortByRate},
	{title: "Total", width: 10, sort: aggregator.SortByTotal},
	{title: "Errors", width: 6, sort: aggregator.SortByErrors},
	{title: "Flags", width: 16, left: true, sort: -1},
}

// New 创建 TUI 模型
func New(cfg Config, entriesChan <-chan []aggregator.FlowEntry) Model {
	ti := textinput.New()
	ti.Placeholder = "输入过滤关键词..."
	ti.CharLimit = 50

	return Model{
		config:      cfg,
		sortMode:    aggregator.SortByRate,
		filterInput: ti,
		startTime:   time.Now(),
		entriesChan: entriesChan,
		width:       120,
		height:      24,
	}
}

// Init 初始化
func (m Model) Init() tea.Cmd {
	return waitForEntries(m.entriesChan)
}

func waitForEntries(ch <-chan []aggregator.FlowEntry) tea.Cmd {
	return func() tea.Msg {
		entries, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return entriesMsg(entries)
	}
}

// Update 更新状态
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}
		if m.filtering {
			return m.handleFilterInput(msg)
		}
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case entriesMsg:
		if !m.paused {
			m.all = []aggregator.FlowEntry(msg)
			m.refresh()
		}
		return m, waitForEntries(m.entriesChan)

	case closedMsg:
		// 抓包结束后保留最后一帧，等待用户退出
		m.finished = true
		return m, nil
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "s":
		m.sortMode = (m.sortMode + 1) % aggregator.SortModes
		aggregator.Sort(m.entries, m.sortMode)
	case "p":
		m.paused = !m.paused
	case "/":
		m.filtering = true
		m.filterInput.Focus()
		return m, textinput.Blink
	case "?":
		m.showHelp = true
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.entries)-1 {
			m.selected++
		}
	case "home":
		m.selected = 0
	case "end":
		if len(m.entries) > 0 {
			m.selected = len(m.entries) - 1
		}
	}
	return m, nil
}

func (m Model) handleFilterInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filterText = m.filterInput.Value()
		m.filtering = false
		m.filterInput.Blur()
		m.refresh()
	case "esc":
		m.filtering = false
		m.filterInput.Blur()
		m.filterInput.SetValue(m.filterText)
	default:
		var cmd tea.Cmd
		m.filterInput, cmd = m.filterInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

// refresh 按关键词过滤、排序并重新计算汇总
func (m *Model) refresh() {
	m.entries = m.all
	if m.filterText != "" {
		filter := strings.ToLower(m.filterText)
		filtered := make([]aggregator.FlowEntry, 0)
		for _, e := range m.all {
			if strings.Contains(strings.ToLower(e.DisplayName), filter) {
				filtered = append(filtered, e)
			}
		}
		m.entries = filtered
	}
	aggregator.Sort(m.entries, m.sortMode)

	m.totalRate, m.packets, m.errors = 0, 0, 0
	for _, e := range m.entries {
		m.totalRate += e.TotalRate()
		m.packets += e.Packets
		m.errors += e.Errors
	}
	if m.selected >= len(m.entries) {
		m.selected = max(len(m.entries)-1, 0)
	}
}

// View 渲染视图
func (m Model) View() string {
	if m.showHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTable())
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	runtime := time.Since(m.startTime).Round(time.Second)

	line1 := fmt.Sprintf(" pktwatch | Host: %s | Interface: %s", m.config.Hostname, m.config.Interface)
	if m.config.Filter != "" {
		line1 += " | Filter: " + m.config.Filter
	}

	line2 := fmt.Sprintf(" Rate: %s | Flows: %d | Packets: %d | Errors: %d | Runtime: %s",
		FormatRate(m.totalRate), len(m.entries), m.packets, m.errors, runtime)
	if m.paused {
		line2 += " [PAUSED]"
	}
	if m.finished {
		line2 += " [FINISHED]"
	}

	header := titleStyle.Render(line1) + "\n"
	if m.config.Command != "" {
		header += commandStyle.Render(" $ "+TruncateString(m.config.Command, max(m.width-3, 10))) + "\n"
	}
	return header + headerStyle.Render(line2)
}

func (m Model) renderTable() string {
	var b strings.Builder

	// 表头，排序列高亮
	titles := make([]string, 0, len(columns))
	for _, c := range columns {
		title := c.title
		if c.sort == m.sortMode {
			title += "▼"
		}
		cell := pad(title, c)
		if c.sort == m.sortMode {
			cell = sortColumnStyle.Render(cell)
		}
		titles = append(titles, cell)
	}
	b.WriteString(tableHeaderStyle.Render(strings.Join(titles, " ")))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("-", m.width))
	b.WriteString("\n")

	maxRows := m.height - 9
	if maxRows < 1 {
		maxRows = 10
	}

	// 选中行始终可见
	offset := 0
	if m.selected >= maxRows {
		offset = m.selected - maxRows + 1
	}

	for i := offset; i < len(m.entries) && i < offset+maxRows; i++ {
		e := m.entries[i]
		cells := []string{
			pad(TruncateString(e.DisplayName, columns[0].width), columns[0]),
			pad(e.Protocol, columns[1]),
			pad(fmt.Sprint(e.Packets), columns[2]),
			pad(FormatRate(e.TotalRate()), columns[3]),
			pad(FormatBytes(e.Total()), columns[4]),
			pad(fmt.Sprint(e.Errors), columns[5]),
			pad(TruncateFlags(e.TCPFlags, columns[6].width), columns[6]),
		}
		if e.Errors > 0 {
			cells[5] = errorStyle.Render(cells[5])
		}
		row := strings.Join(cells, " ")

		if i == m.selected {
			b.WriteString(selectedRowStyle.Render(row))
		} else {
			b.WriteString(tableRowStyle.Render(row))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func pad(s string, c column) string {
	if c.left {
		return PadRight(s, c.width)
	}
	return PadLeft(s, c.width)
}

func (m Model) renderFooter() string {
	var footer string
	if m.filtering {
		footer = " Filter: " + m.filterInput.View()
	} else {
		footer = fmt.Sprintf(" [q]uit  [s]ort: %s  [p]ause  [/]filter  [?]help", sortIndicatorStyle.Render(m.sortMode.String()))
		if m.filterText != "" {
			footer += fmt.Sprintf("  Filter: %s", m.filterText)
		}
	}

	return footerStyle.Render(footer)
}

func (m Model) renderHelp() string {
	help := `
 pktwatch 快捷键帮助

 导航:
   up/k     向上移动
   down/j   向下移动
   Home     跳到顶部
   End      跳到底部

 操作:
   s        切换排序模式 (Rate -> Total -> Packets -> Errors)
   p        暂停/恢复刷新
   /        按会话名过滤
   ?        显示/隐藏帮助

 退出:
   q        退出程序
   Ctrl+C   退出程序

 按任意键返回...
`
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(1, 2).
		Render(help)
}

// Run 运行 TUI，entriesChan 关闭后界面保留到用户退出
func Run(cfg Config, entriesChan <-chan []aggregator.FlowEntry) error {
	p := tea.NewProgram(
		New(cfg, entriesChan),
		tea.WithAltScreen(),
	)

	_, err := p.Run()
	return err
}
