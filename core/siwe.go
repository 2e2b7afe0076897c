package core

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	siweHeaderSuffix = " wants you to sign in with your Ethereum account:"
	siweVersion      = "1"
)

// siweFields lists the message fields in the order they must appear; the first five are required
var siweFields = []string{"URI", "Version", "Chain ID", "Nonce", "Issued At", "Expiration Time", "Not Before", "Request ID"}

// SiweMessage is the EIP-4361 message a wallet signs to prove control of an address
type SiweMessage struct {
	Domain         string
	Address        string
	Statement      string
	URI            string
	Version        string
	ChainID        int64
	Nonce          string
	IssuedAt       time.Time
	ExpirationTime *time.Time
	NotBefore      *time.Time
	RequestID      string
	Resources      []string
}

// ParseSiweMessage parses the canonical text form of a SIWE message
func ParseSiweMessage(raw string) (*SiweMessage, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	if len(lines) < 3 {
		return nil, ErrInvalidMessage
	}

	domain, ok := strings.CutSuffix(lines[0], siweHeaderSuffix)
	if !ok || domain == "" {
		return nil, fmt.Errorf("missing header: %w", ErrInvalidMessage)
	}

	msg := &SiweMessage{
		Domain:  domain,
		Address: strings.TrimSpace(lines[1]),
	}
	if msg.Address == "" {
		return nil, fmt.Errorf("missing address: %w", ErrInvalidMessage)
	}

	i := 2
	var statement []string
	for ; i < len(lines) && !strings.HasPrefix(lines[i], "URI: "); i++ {
		if lines[i] != "" {
			statement = append(statement, lines[i])
		}
	}
	msg.Statement = strings.Join(statement, "\n")

	inResources := false
	last := -1
	seen := make(map[string]bool, len(siweFields))
	for ; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			continue
		}
		if inResources {
			if res, ok := strings.CutPrefix(line, "- "); ok {
				msg.Resources = append(msg.Resources, res)
				continue
			}
			return nil, fmt.Errorf("unexpected line after resources: %w", ErrInvalidMessage)
		}
		if line == "Resources:" {
			inResources = true
			continue
		}

		key, value, found := strings.Cut(line, ": ")
		if !found {
			return nil, fmt.Errorf("unexpected line %q: %w", line, ErrInvalidMessage)
		}

		pos := slices.Index(siweFields, key)
		if pos < 0 {
			return nil, fmt.Errorf("unknown field %q: %w", key, ErrInvalidMessage)
		}
		if pos <= last {
			return nil, fmt.Errorf("field %q repeated or out of order: %w", key, ErrInvalidMessage)
		}
		last = pos
		seen[key] = true

		var err error
		switch key {
		case "URI":
			msg.URI = value
		case "Version":
			msg.Version = value
		case "Chain ID":
			msg.ChainID, err = strconv.ParseInt(value, 10, 64)
		case "Nonce":
			msg.Nonce = value
		case "Issued At":
			msg.IssuedAt, err = parseSiweTime(value)
		case "Expiration Time":
			var t time.Time
			t, err = parseSiweTime(value)
			msg.ExpirationTime = &t
		case "Not Before":
			var t time.Time
			t, err = parseSiweTime(value)
			msg.NotBefore = &t
		case "Request ID":
			msg.RequestID = value
		}
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, ErrInvalidMessage)
		}
	}

	for _, key := range siweFields[:5] {
		if !seen[key] {
			return nil, fmt.Errorf("missing field %q: %w", key, ErrInvalidMessage)
		}
	}
	if msg.Version != siweVersion {
		return nil, fmt.Errorf("unsupported version %q: %w", msg.Version, ErrInvalidMessage)
	}
	if msg.URI == "" || msg.Nonce == "" {
		return nil, fmt.Errorf("missing required field: %w", ErrInvalidMessage)
	}

	return msg, nil
}

// String renders the message in canonical form
func (m SiweMessage) String() string {
	var b strings.Builder
	b.WriteString(m.Domain + siweHeaderSuffix + "\n")
	b.WriteString(m.Address + "\n\n")
	if m.Statement != "" {
		b.WriteString(m.Statement + "\n")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "URI: %s\n", m.URI)
	fmt.Fprintf(&b, "Version: %s\n", m.Version)
	fmt.Fprintf(&b, "Chain ID: %d\n", m.ChainID)
	fmt.Fprintf(&b, "Nonce: %s\n", m.Nonce)
	fmt.Fprintf(&b, "Issued At: %s", m.IssuedAt.UTC().Format(time.RFC3339Nano))
	if m.ExpirationTime != nil {
		fmt.Fprintf(&b, "\nExpiration Time: %s", m.ExpirationTime.UTC().Format(time.RFC3339Nano))
	}
	if m.NotBefore != nil {
		fmt.Fprintf(&b, "\nNot Before: %s", m.NotBefore.UTC().Format(time.RFC3339Nano))
	}
	if m.RequestID != "" {
		fmt.Fprintf(&b, "\nRequest ID: %s", m.RequestID)
	}
	if len(m.Resources) > 0 {
		b.WriteString("\nResources:")
		for _, r := range m.Resources {
			b.WriteString("\n- " + r)
		}
	}
	return b.String()
}

// CheckWindow reports whether the message is valid at the given instant
func (m SiweMessage) CheckWindow(now time.Time) error {
	if m.ExpirationTime != nil && !now.Before(*m.ExpirationTime) {
		return ErrMessageExpired
	}
	if m.NotBefore != nil && now.Before(*m.NotBefore) {
		return ErrMessageNotYetValid
	}
	return nil
}

func parseSiweTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, value)
}
