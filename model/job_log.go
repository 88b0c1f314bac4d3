package model

import (
	"time"

	"gorm.io/datatypes"
)

// Job lifecycle events recorded in JobLog.Event.
const (
	JobEventCreated   = "created"
	JobEventCompleted = "completed"
	JobEventCancelled = "cancelled"
)

// JobLog records one lifecycle transition of a colony job.
type JobLog struct {
	ID            int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	JobID         string         `gorm:"index:idx_joblog_job;size:36;not null" json:"job_id"`
	Event         string         `gorm:"size:16;not null" json:"event"`
	FurnitureType string         `gorm:"size:64" json:"furniture_type"`
	X             int            `json:"x"`
	Y             int            `json:"y"`
	Tick          uint64         `gorm:"index:idx_joblog_tick" json:"tick"`
	Requirements  datatypes.JSON `json:"requirements"`
	CreatedAt     time.Time      `gorm:"index:idx_joblog_created;autoCreateTime:milli" json:"created_at"`
}
