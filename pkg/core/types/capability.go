package types

// Capability is the tagged result of probing a platform speech backend.
type Capability struct {
	Available bool   `json:"available"`
	Impl      string `json:"impl,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Available reports a usable backend.
func Available(impl string) Capability {
	return Capability{Available: true, Impl: impl}
}

// Unavailable reports a missing backend and why.
func Unavailable(reason string) Capability {
	return Capability{Reason: reason}
}
