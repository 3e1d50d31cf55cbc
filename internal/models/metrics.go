// Package models defines GORM data models for TalonPulse.
package models

import (
	"encoding/json"
	"maps"
)

// DiskUsage is the usage of one mounted partition at sample time.
type DiskUsage struct {
	Percent    float64 `json:"percent"` // 0-100
	Mountpoint string  `json:"mountpoint"`
}

// Disks maps a device identifier (e.g. "/dev/sda1") to its usage.
// It is persisted as a single JSON text column.
type Disks map[string]DiskUsage

// MarshalJSON encodes a nil map as {} so readers never see null.
func (d Disks) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]DiskUsage(d))
}

// Clone returns an independent copy of d.
func (d Disks) Clone() Disks {
	if d == nil {
		return Disks{}
	}
	return maps.Clone(d)
}

// MetricSample is one point of the host time series. Timestamp (epoch
// seconds) is the primary key; writing an existing timestamp replaces the row.
type MetricSample struct {
	Timestamp int64 `gorm:"column:timestamp;primaryKey;autoIncrement:false" json:"timestamp"`

	// ── Compute ──────────────────────────────────────────────────────────────
	CPUPercent float64 `gorm:"column:cpu_percent" json:"cpu_percent"` // percent 0-100
	RAMPercent float64 `gorm:"column:ram_percent" json:"ram_percent"` // percent 0-100

	// ── Storage ──────────────────────────────────────────────────────────────
	Disks Disks `gorm:"column:discos;type:text;serializer:json" json:"discos"`

	// ── Network (cumulative since boot) ──────────────────────────────────────
	NetSent uint64 `gorm:"column:net_sent" json:"net_sent"`
	NetRecv uint64 `gorm:"column:net_recv" json:"net_recv"`

	// ── Network throughput (bytes per second, derived from the previous tick) ─
	NetSentPerSec uint64 `gorm:"column:net_sent_per_sec" json:"net_sent_per_sec"`
	NetRecvPerSec uint64 `gorm:"column:net_recv_per_sec" json:"net_recv_per_sec"`
}

// TableName pins the table name used by the dashboard schema.
func (MetricSample) TableName() string { return "metrics" }
