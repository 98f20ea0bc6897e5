package model

import "time"

type UserModel string

const (
	UserModelStandard  UserModel = "STANDARD"
	UserModelPortfolio UserModel = "PORTFOLIO"
)

type SubscriptionTier string

const (
	SubscriptionFree SubscriptionTier = "FREE"
	SubscriptionPro  SubscriptionTier = "PRO"
)

type User struct {
	ID               string
	Email            string
	Firstname        string
	Lastname         string
	StripeCustomerID *string
	Model            UserModel
	Subscription     SubscriptionTier
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (u *User) FullName() string {
	switch {
	case u.Firstname != "" && u.Lastname != "":
		return u.Firstname + " " + u.Lastname
	case u.Firstname != "":
		return u.Firstname
	}
	return u.Lastname
}
