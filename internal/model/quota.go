package model

// QuotaTier is what a quota policy resolves a user identity to.
type QuotaTier struct {
	Name       string `json:"name"`
	Limit      int    `json:"limit"`
	Privileged bool   `json:"privileged"`
}

// QuotaUsage is the counter value read against the user's tier.
type QuotaUsage struct {
	Count     int       `json:"count"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Tier      QuotaTier `json:"tier"`
}

// Reconciliation is the outcome of recounting a user's snippets.
// Recorded is the counter before the recount (0 if it did not exist).
type Reconciliation struct {
	UserID    string `json:"userId"`
	Recorded  int    `json:"recorded"`
	Actual    int    `json:"actual"`
	Corrected bool   `json:"corrected"`
}
