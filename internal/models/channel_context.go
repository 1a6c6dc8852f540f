package models

import "time"

// ChannelContext persists the last series name announced in a channel by a
// caption-only post, so that context survives a restart.
type ChannelContext struct {
	ChannelID  string    `gorm:"primarykey;size:255" json:"channel_id"`
	SeriesName string    `gorm:"not null;size:512" json:"series_name"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the table name for ChannelContext.
func (ChannelContext) TableName() string {
	return "channel_contexts"
}

// Validate performs basic validation on the channel context.
func (c *ChannelContext) Validate() error {
	if c.ChannelID == "" {
		return ErrChannelIDRequired
	}
	if c.SeriesName == "" {
		return ErrNameRequired
	}
	return nil
}
