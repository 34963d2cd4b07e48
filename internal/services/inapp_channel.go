package services

import (
	"context"
	"encoding/json"
	"fmt"

	"notetracker/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InAppChannel delivers reminders to the user's in-app notification inbox
type InAppChannel struct {
	db *gorm.DB
}

func NewInAppChannel(db *gorm.DB) *InAppChannel {
	return &InAppChannel{db: db}
}

func (c *InAppChannel) Name() string { return models.ChannelInApp }

type inAppPayload struct {
	ReminderID uint   `json:"reminder_id"`
	TaskID     uint   `json:"task_id"`
	CycleID    string `json:"cycle_id"`
}

// Deliver stores an unread notification for the recipient
func (c *InAppChannel) Deliver(ctx context.Context, recipient models.Recipient, msg RenderedMessage) models.Outcome {
	payload, err := json.Marshal(inAppPayload{ReminderID: msg.ReminderID, TaskID: msg.TaskID, CycleID: msg.CycleID})
	if err != nil {
		return models.Failed(fmt.Sprintf("failed to encode payload: %v", err))
	}

	notif := models.Notification{
		UserID:  recipient.UserID,
		AppName: "general",
		Type:    models.NotificationTypeReminder,
		Title:   msg.Subject,
		Message: msg.Text,
		Payload: datatypes.JSON(payload),
	}
	if err := c.db.WithContext(ctx).Create(&notif).Error; err != nil {
		return OutcomeFromError(fmt.Errorf("%w: %v", ErrTransientDeliveryFailure, err))
	}
	return models.Delivered()
}
