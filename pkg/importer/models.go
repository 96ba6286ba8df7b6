package importer

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

const (
	PhaseUploading  = "uploading"
	PhaseParsing    = "parsing"
	PhaseProcessing = "processing"
	PhaseCompleted  = "completed"
)

func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// RowError records one rejected row. Row numbers are 1-based and count the
// header, so the first data row is row 2. A zero Row marks a job-level cause
// (unreadable file, dead store) and is omitted from the payload.
type RowError struct {
	Row     int    `json:"row,omitempty"`
	SKU     string `json:"sku,omitempty"`
	Message string `json:"error"`
}

// ImportJob is the persisted job snapshot. The worker owns every field except
// CancellationRequested, which belongs to the cancel endpoint.
type ImportJob struct {
	ID                    string         `json:"id" gorm:"primaryKey;column:id"`
	FileName              string         `json:"file_name" gorm:"column:file_name"`
	Status                string         `json:"status" gorm:"column:status;index"`
	Phase                 string         `json:"phase" gorm:"column:phase"`
	Progress              int            `json:"progress" gorm:"column:progress"`
	TotalRecords          int            `json:"total_records" gorm:"column:total_records"`
	ProcessedRecords      int            `json:"processed_records" gorm:"column:processed_records"`
	Errors                datatypes.JSON `json:"errors" gorm:"column:errors"`
	CancellationRequested bool           `json:"cancellation_requested" gorm:"column:cancellation_requested"`
	CreatedAt             time.Time      `json:"created_at" gorm:"column:created_at;index"`
	LastUpdatedAt         time.Time      `json:"last_updated_at" gorm:"column:last_updated_at"`
	CompletedAt           *time.Time     `json:"completed_at,omitempty" gorm:"column:completed_at"`
}

func (ImportJob) TableName() string {
	return "import_jobs"
}

func (j *ImportJob) RowErrors() []RowError {
	if len(j.Errors) == 0 {
		return nil
	}
	var errs []RowError
	if err := json.Unmarshal(j.Errors, &errs); err != nil {
		return nil
	}
	return errs
}

// Snapshot is the observable state handed to progress readers.
type Snapshot struct {
	JobID            string     `json:"job_id"`
	FileName         string     `json:"file_name"`
	Status           string     `json:"status"`
	Phase            string     `json:"phase"`
	Progress         int        `json:"progress"`
	TotalRecords     int        `json:"total_records"`
	ProcessedRecords int        `json:"processed_records"`
	Errors           []RowError `json:"errors"`
	LastUpdatedAt    time.Time  `json:"last_updated_at"`
}

func (s Snapshot) Terminal() bool {
	return IsTerminal(s.Status)
}

func (j *ImportJob) Snapshot() Snapshot {
	return Snapshot{
		JobID:            j.ID,
		FileName:         j.FileName,
		Status:           j.Status,
		Phase:            j.Phase,
		Progress:         j.Progress,
		TotalRecords:     j.TotalRecords,
		ProcessedRecords: j.ProcessedRecords,
		Errors:           j.RowErrors(),
		LastUpdatedAt:    j.LastUpdatedAt,
	}
}

// percent computes floor(processed/total*100), capped below 100 while the job
// is still running. Unknown or zero totals report 0.
func percent(processed, total int, done bool) int {
	if done {
		return 100
	}
	if total <= 0 {
		return 0
	}
	p := processed * 100 / total
	if p > 99 {
		p = 99
	}
	return p
}
