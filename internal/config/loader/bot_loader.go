// Package loader reads per-bot definition files from a directory. Each file is
// a small JSON document naming a symbol, its risk category and optional
// per-bot overrides for stake and exit targets. Invalid files are skipped, not
// fatal: a broken definition should never take down the rest of the fleet.
package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"tidebot/internal/logger"
	"tidebot/internal/pkg/symbol"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BotDefinition is one entry of the bot fleet.
type BotDefinition struct {
	Name             string  `json:"name"`
	Symbol           string  `json:"symbol"`
	Category         string  `json:"category"`
	InvestmentAmount float64 `json:"investment_amount,omitempty"`
	ProfitTarget     float64 `json:"profit_target,omitempty"`
	StopLoss         float64 `json:"stop_loss,omitempty"`
	Enabled          *bool   `json:"enabled,omitempty"`
}

func (d BotDefinition) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

const botSchema = `{
  "type": "object",
  "required": ["name", "symbol", "category"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "symbol": {"type": "string", "minLength": 1},
    "category": {"type": "string", "minLength": 1},
    "investment_amount": {"type": "number", "minimum": 10, "maximum": 1000},
    "profit_target": {"type": "number", "exclusiveMinimum": 1.0, "maximum": 1.5},
    "stop_loss": {"type": "number", "minimum": 0.5, "exclusiveMaximum": 1.0},
    "enabled": {"type": "boolean"}
  },
  "additionalProperties": false
}`

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("bot.schema.json", strings.NewReader(botSchema)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("bot.schema.json")
}

// LoadDir reads all *.json files under dir, validates each against the bot
// schema, and returns the definitions sorted by symbol. Files that fail to
// parse or validate are logged and skipped.
func LoadDir(dir string) ([]BotDefinition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading bot definitions dir failed (%s): %w", dir, err)
	}
	defs := make([]BotDefinition, 0, len(entries))
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		def, err := loadFile(path)
		if err != nil {
			logger.Warnf("Skipping bot definition %s: %v", entry.Name(), err)
			continue
		}
		if prev, dup := seen[def.Symbol]; dup {
			logger.Warnf("Skipping bot definition %s: symbol %s already defined by %s", entry.Name(), def.Symbol, prev)
			continue
		}
		seen[def.Symbol] = entry.Name()
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Symbol < defs[j].Symbol })
	return defs, nil
}

func loadFile(path string) (BotDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return BotDefinition{}, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return BotDefinition{}, fmt.Errorf("invalid json: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return BotDefinition{}, fmt.Errorf("schema violation: %w", err)
	}
	var def BotDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return BotDefinition{}, err
	}
	def.Symbol = symbol.Normalize(def.Symbol)
	def.Category = strings.ToLower(strings.TrimSpace(def.Category))
	return def, nil
}

// ChangeListener receives the freshly loaded definition set after a reload.
type ChangeListener func([]BotDefinition)

// Watcher reloads the definition directory when files change.
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher

	mu        sync.RWMutex
	defs      []BotDefinition
	listeners []ChangeListener
	done      chan struct{}
}

// NewWatcher loads dir once and starts watching it for changes.
func NewWatcher(dir string) (*Watcher, error) {
	defs, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{
		dir:     dir,
		watcher: fsw,
		defs:    defs,
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Definitions returns the current definition snapshot.
func (w *Watcher) Definitions() []BotDefinition {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]BotDefinition, len(w.defs))
	copy(out, w.defs)
	return out
}

// Subscribe registers a listener for reloads.
func (w *Watcher) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.reload(evt.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Errorf("Bot definition watcher error: %v", err)
		}
	}
}

func (w *Watcher) reload(trigger string) {
	defs, err := LoadDir(w.dir)
	if err != nil {
		logger.Errorf("Bot definition reload failed (%s): %v", trigger, err)
		return
	}
	w.mu.Lock()
	w.defs = defs
	listeners := append([]ChangeListener(nil), w.listeners...)
	w.mu.Unlock()
	logger.Infof("Bot definitions reloaded count=%d trigger=%s", len(defs), filepath.Base(trigger))
	for _, fn := range listeners {
		fn(defs)
	}
}
