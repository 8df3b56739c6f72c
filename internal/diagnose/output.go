package diagnose

import (
	"encoding/json"
	"io"
	"os"
	"time"
)

// CheckStatus 检查状态
type CheckStatus string

const (
	StatusPass    CheckStatus = "pass"
	StatusFail    CheckStatus = "fail"
	StatusWarning CheckStatus = "warning"
	StatusSkipped CheckStatus = "skipped"
)

// CheckResult 单项检查结果
type CheckResult struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"status"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details any         `json:"details,omitempty"`
}

// Report 诊断报告（JSON 格式）
type Report struct {
	Timestamp time.Time     `json:"timestamp"`
	Status    CheckStatus   `json:"status"`
	Summary   string        `json:"summary"`
	Checks    []CheckResult `json:"checks"`
	System    *SystemInfo   `json:"system,omitempty"`
}

// SystemInfo 系统信息
type SystemInfo struct {
	Kernel      string `json:"kernel"`
	Arch        string `json:"arch"`
	Hostname    string `json:"hostname"`
	UID         int    `json:"uid"`
	EUID        int    `json:"euid"`
	CapEff      string `json:"cap_eff,omitempty"`
	HasNetRaw   bool   `json:"has_cap_net_raw"`
	HasNetAdmin bool   `json:"has_cap_net_admin"`
}

// NewReport 创建诊断报告
func NewReport() *Report {
	return &Report{
		Timestamp: time.Now(),
		Status:    StatusPass,
		Checks:    make([]CheckResult, 0),
	}
}

// AddCheck 添加检查结果
func (r *Report) AddCheck(name string, status CheckStatus, message string) {
	r.add(CheckResult{Name: name, Status: status, Message: message})
}

// AddCheckWithError 添加带错误的检查结果
func (r *Report) AddCheckWithError(name string, status CheckStatus, message string, err error) {
	check := CheckResult{Name: name, Status: status, Message: message}
	if err != nil {
		check.Error = err.Error()
	}
	r.add(check)
}

// AddCheckWithDetails 添加带详细信息的检查结果
func (r *Report) AddCheckWithDetails(name string, status CheckStatus, message string, details any) {
	r.add(CheckResult{Name: name, Status: status, Message: message, Details: details})
}

func (r *Report) add(check CheckResult) {
	r.Checks = append(r.Checks, check)
	switch {
	case check.Status == StatusFail:
		r.Status = StatusFail
	case check.Status == StatusWarning && r.Status != StatusFail:
		r.Status = StatusWarning
	}
}

// Check 按名称查找检查结果
func (r *Report) Check(name string) (CheckResult, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

// OutputJSON 输出 JSON 格式
func (r *Report) OutputJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// OutputJSONToFile 输出 JSON 到文件
func (r *Report) OutputJSONToFile(filepath string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath, data, 0644)
}
