package models

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User roles.
const (
	RoleVolunteer = "volunteer"
	RoleOrganizer = "organizer"
	RoleAdmin     = "admin"
)

// User is the model for the 'users' table.
type User struct {
	ID           string    `json:"id" db:"id"`
	Role         string    `json:"role" db:"role"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FullName     string    `json:"fullName" db:"full_name"`
	AvatarURL    string    `json:"avatarUrl,omitempty" db:"avatar_url"`
	Points       int64     `json:"points" db:"points"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// AsSender snapshots the user as a notification sender.
func (u User) AsSender() *Sender {
	return &Sender{Name: u.FullName, Avatar: u.AvatarURL}
}

// Password Helper (Standard)
type Password struct {
	Plaintext *string
	Hash      string
}

func (p *Password) Set(plaintextPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintextPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	p.Hash = string(hash)
	p.Plaintext = &plaintextPassword
	return nil
}

func (p *Password) Matches(plaintextPassword string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(p.Hash), []byte(plaintextPassword))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
