// Package servers manages the list of known inference servers.
// The list is stored as a JSON file in the user's config directory.
package servers

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/arin/lmchat/internal/ai"
	"github.com/arin/lmchat/internal/config"
)

const (
	fileName    = "servers.json"
	defaultNick = "server"
)

var (
	// ErrInvalidURL is returned for an empty or unparsable server URL.
	ErrInvalidURL = ai.ErrInvalidURL
	// ErrLastServer is returned when removing the only remaining server.
	ErrLastServer = errors.New("cannot remove the last server")
	// ErrNotFound is returned when no server matches.
	ErrNotFound = errors.New("server not found")
)

// fileMu guards concurrent access to the servers file.
var fileMu sync.Mutex

// Server is a named inference endpoint.
type Server struct {
	Nick string `json:"nick"`
	URL  string `json:"url"`
}

// Defaults is the list used when nothing valid is saved.
func Defaults() []Server {
	return []Server{{Nick: "local", URL: "http://localhost:1234"}}
}

func serversPath() string {
	return filepath.Join(config.Dir(), fileName)
}

// Load returns the saved servers. A missing, unreadable or empty file yields
// Defaults; invalid entries are dropped.
func Load() []Server {
	fileMu.Lock()
	defer fileMu.Unlock()
	return loadAll()
}

func loadAll() []Server {
	data, err := os.ReadFile(serversPath())
	if err != nil {
		return Defaults()
	}

	var raw []Server
	if err := json.Unmarshal(data, &raw); err != nil {
		return Defaults()
	}

	var list []Server
	for _, s := range raw {
		if c, err := clean(s); err == nil {
			list = append(list, c)
		}
	}
	if len(list) == 0 {
		return Defaults()
	}
	return list
}

// clean normalises the URL and fills a blank nick.
func clean(s Server) (Server, error) {
	u, err := ai.NormalizeBaseURL(s.URL)
	if err != nil {
		return Server{}, err
	}
	nick := strings.TrimSpace(s.Nick)
	if nick == "" {
		nick = defaultNick
	}
	return Server{Nick: nick, URL: ai.TrimBase(u)}, nil
}

func save(list []Server) error {
	if err := os.MkdirAll(config.Dir(), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(serversPath(), data, 0o600)
}

// Upsert adds s, or renames the existing entry with the same URL. It
// returns the stored form.
func Upsert(s Server) (Server, error) {
	c, err := clean(s)
	if err != nil {
		return Server{}, err
	}

	fileMu.Lock()
	defer fileMu.Unlock()

	list := loadAll()
	found := false
	for i := range list {
		if list[i].URL == c.URL {
			list[i].Nick = c.Nick
			found = true
			break
		}
	}
	if !found {
		list = append(list, c)
	}
	return c, save(list)
}

// Remove deletes the server with the given URL or nick.
func Remove(ref string) error {
	fileMu.Lock()
	defer fileMu.Unlock()

	list := loadAll()
	i := index(list, ref)
	if i < 0 {
		return ErrNotFound
	}
	if len(list) == 1 {
		return ErrLastServer
	}
	list = append(list[:i], list[i+1:]...)
	return save(list)
}

// Find resolves ref, matched first as a URL and then as a nick.
func Find(ref string) (Server, error) {
	list := Load()
	i := index(list, ref)
	if i < 0 {
		return Server{}, ErrNotFound
	}
	return list[i], nil
}

func index(list []Server, ref string) int {
	ref = strings.TrimSpace(ref)
	if u, err := ai.NormalizeBaseURL(ref); err == nil {
		u = ai.TrimBase(u)
		for i, s := range list {
			if s.URL == u {
				return i
			}
		}
	}
	for i, s := range list {
		if strings.EqualFold(s.Nick, ref) {
			return i
		}
	}
	return -1
}
