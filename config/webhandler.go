package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigHandler routes API requests for /api/config to the appropriate handler
// based on the HTTP method.
func ConfigHandler(holder *Holder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			getConfigHandler(w, r, holder)
		case http.MethodPost:
			setConfigHandler(w, r, holder)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// getConfigHandler returns the configuration in effect as JSON, with the
// password masked.
func getConfigHandler(w http.ResponseWriter, _ *http.Request, holder *Holder) {
	slog.Debug("Handling GET /api/config request")

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(holder.Current().Redacted()); err != nil {
		slog.Error("Failed to encode config to JSON", "error", err)
		http.Error(w, "Failed to serialize configuration", http.StatusInternalServerError)
	}
}

// setConfigHandler receives a JSON payload with runtime configuration, merges
// it with the full configuration on disk, validates it and writes it back. The
// runtime part of the saved configuration is sent back as JSON.
func setConfigHandler(w http.ResponseWriter, r *http.Request, holder *Holder) {
	slog.Info("Handling POST /api/config request")
	defer r.Body.Close()

	cfile := holder.Path()
	if cfile == "" {
		http.Error(w, "No config file in use, configuration is read-only", http.StatusConflict)
		return
	}

	var newRuntimeConfig RuntimeConfig
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&newRuntimeConfig); err != nil {
		slog.Error("Failed to decode incoming JSON", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Start from the file, not from holder.Current(): the latter may carry a
	// password from the environment that must not end up on disk.
	fileConfig, err := ReadConfig(cfile)
	if err != nil {
		slog.Error("Failed to read existing config for update", "error", err)
		http.Error(w, "Failed to read configuration", http.StatusInternalServerError)
		return
	}

	merged, err := New(newRuntimeConfig.Merge(fileConfig))
	if err != nil {
		slog.Error("Validation failed for new config", "error", err)
		http.Error(w, fmt.Sprintf("Invalid configuration: %v", err), http.StatusBadRequest)
		return
	}

	yamlData, err := yaml.Marshal(merged.File())
	if err != nil {
		slog.Error("Failed to marshal merged config to YAML", "error", err)
		http.Error(w, "Failed to prepare configuration for saving", http.StatusInternalServerError)
		return
	}

	if err := os.WriteFile(cfile, yamlData, 0o600); err != nil {
		slog.Error("Failed to write updated config file", "error", err)
		http.Error(w, "Failed to save configuration", http.StatusInternalServerError)
		return
	}

	// Don't wait for the watcher, the caller expects to read back its change.
	if err := holder.Reload(); err != nil {
		http.Error(w, "Configuration saved but could not be applied", http.StatusInternalServerError)
		return
	}

	slog.Info("Successfully updated config file")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(merged.Runtime()); err != nil {
		slog.Error("Failed to encode applied config to JSON", "error", err)
	}
}
