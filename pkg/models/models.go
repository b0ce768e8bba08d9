package models

import "time"

// ComponentKind distinguishes the two halves of an installed application.
type ComponentKind string

const (
	ComponentFrontend ComponentKind = "frontend"
	ComponentBackend  ComponentKind = "backend"
)

type ComponentRef struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Kind    ComponentKind `json:"kind"`
	Version string        `json:"version"`
}

// Application is an installed application manifest as persisted in the row
// store. The resolution and download pipeline that produces it lives outside
// this module.
type Application struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	IconURI     string         `json:"icon_uri,omitempty"`
	Description string         `json:"description,omitempty"`
	Components  []ComponentRef `json:"components"`
	InstalledAt time.Time      `json:"installed_at"`
}

// DeviceKey is data-layer scaffolding for device revocation; no service
// consumes it yet.
type DeviceKey struct {
	DeviceID  string `json:"device_id"`
	PublicKey []byte `json:"public_key"`
	CreatedAt uint64 `json:"created_at"`
	RevokedAt uint64 `json:"revoked_at,omitempty"`
}

func (k DeviceKey) Revoked() bool { return k.RevokedAt != 0 }

// PairingSession is data-layer scaffolding for device pairing; no service
// consumes it yet.
type PairingSession struct {
	SessionID       string `json:"session_id"`
	ServerPublicKey []byte `json:"server_public_key"`
	DevicePublicKey []byte `json:"device_public_key"`
	EstablishedAt   int64  `json:"established_at"`
	ExpiresAt       int64  `json:"expires_at"`
	Status          string `json:"status"`
}

const (
	PairingPending     = "pending"
	PairingEstablished = "established"
	PairingFailed      = "failed"
)
