package model

import "pizzeria/internal/storage"

const KindUser storage.Kind = "users"

// User is a customer. Credentials are handled outside this service.
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Address     string `json:"address,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

func (u *User) Kind() storage.Kind   { return KindUser }
func (u *User) EntityID() int64      { return u.ID }
func (u *User) SetEntityID(id int64) { u.ID = id }

func (u *User) Clone() storage.Entity {
	c := *u
	return &c
}
