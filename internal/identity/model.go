package identity

import "time"

// User represents a registered account holder.
type User struct {
    ID           int64
    Email        string
    FullName     string
    PasswordHash []byte
    CreatedAt    time.Time
}

// Registration request structure.
type Registration struct {
    Email    string
    FullName string
    Password string
}
