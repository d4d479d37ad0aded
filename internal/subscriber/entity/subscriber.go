package entity

import "time"

// Subscriber is a device that receives push notifications for a user.
type Subscriber struct {
	UserUID     string    `json:"userUid"`
	Username    string    `json:"username"`
	DeviceToken string    `json:"deviceToken"`
	SessionAt   time.Time `json:"sessionAt"`
}

type DeviceTokensRequest struct {
	UserUIDs []string `json:"userUids" validate:"required,min=1,dive,required"`
}
