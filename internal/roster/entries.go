package roster

import (
	"fmt"
	"os"

	"github.com/marcogenualdo/discord-join/internal/composite"
	"gopkg.in/yaml.v3"
)

// Entry is one managed account in a roster file. An empty UserID asks for a
// new account to be created.
type Entry struct {
	UserID        string `yaml:"user_id"`
	Name          string `yaml:"name"`
	IdentityID    string `yaml:"identity_id"`
	IdentityEmail string `yaml:"identity_email"`
	AccessKey     string `yaml:"access_key"`
}

type entriesFile struct {
	Players []Entry `yaml:"players"`
}

func (e Entry) Values() composite.Values {
	return composite.Values{
		composite.KindIdentityID:    e.IdentityID,
		composite.KindIdentityEmail: e.IdentityEmail,
	}
}

func LoadEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster file: %w", err)
	}
	return ParseEntries(data)
}

func ParseEntries(data []byte) ([]Entry, error) {
	var f entriesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse roster file: %w", err)
	}

	seen := make(map[string]bool, len(f.Players))
	for i, e := range f.Players {
		if e.UserID == "" {
			if e.Name == "" {
				return nil, fmt.Errorf("players[%d]: new accounts need a name", i)
			}
			continue
		}
		if seen[e.UserID] {
			return nil, fmt.Errorf("players[%d]: duplicate user_id %q", i, e.UserID)
		}
		seen[e.UserID] = true
	}
	return f.Players, nil
}
