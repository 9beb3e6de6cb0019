package model

import "time"

// RoleAdmin is the role name that grants visibility over every term.
const RoleAdmin = "Admin"

// RoleUser is assigned to self-registered accounts.
const RoleUser = "User"

// User represents an application user record as stored in the
// `users` table.  Handlers never serialise this struct directly since
// it carries the password hash and reset token.
//
// Fields:
//  ID                – primary key identifier of the user.
//  Username          – display name resolved by the admin listing.
//  Email             – unique, lower-cased email address.
//  PasswordHash      – bcrypt hashed password.
//  Role              – role name (User or Admin).
//  IsAdmin           – explicit admin flag carried in access tokens.
//  IsActive          – whether the account may log in.
//  CreatedAt         – timestamp of creation.
//  ResetToken        – pending password-reset token (nullable).
//  ResetTokenExpires – expiry of ResetToken (nullable).
type User struct {
    ID                uint64     // users.id
    Username          string     // users.username
    Email             string     // users.email
    PasswordHash      string     // users.password_hash
    Role              string     // users.role
    IsAdmin           bool       // users.is_admin
    IsActive          bool       // users.is_active
    CreatedAt         time.Time  // users.created_at
    ResetToken        *string    // users.reset_token
    ResetTokenExpires *time.Time // users.reset_token_expires
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry
// and revocation.  The plain token is not stored; only its
// SHA‑256 hash.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    uint64     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
