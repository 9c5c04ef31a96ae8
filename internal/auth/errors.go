package auth

import "errors"

var (
	ErrNameAPIKeyRequired = errors.New("Account name and API key are required")
	ErrCredentialsMissing = errors.New("Missing account credentials")
	ErrInvalidAccount     = errors.New("Invalid account")
	ErrIncorrectAPIKey    = errors.New("Incorrect API key")
	ErrInvalidName        = errors.New("Account name may only contain letters, digits, dots, hyphens and underscores")
	ErrNameTaken          = errors.New("Account name already registered")
	ErrNotAuthenticated   = errors.New("Not authenticated")
)
