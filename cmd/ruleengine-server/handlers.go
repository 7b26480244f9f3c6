package main

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/UnivaCorporation/policyengine/internal/ruleengine"
	"github.com/UnivaCorporation/policyengine/internal/rulexml"
	"github.com/UnivaCorporation/policyengine/pkg/models"
)

type handlers struct {
	engine *ruleengine.Engine
}

func (h *handlers) postApplicationData(w http.ResponseWriter, r *http.Request) {
	applicationName := r.PathValue("applicationName")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
		return
	}

	var req applicationDataRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}

	data, err := decodeDoubleBase64(req.Data)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if err := h.engine.ReceiveApplicationData(r.Context(), applicationName, data); err != nil {
		respondError(w, err, http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *handlers) getRuleList(w http.ResponseWriter, r *http.Request) {
	rules := h.engine.GetRuleList()
	encoded := make([]json.RawMessage, 0, len(rules))
	for _, rule := range rules {
		xmlBytes, err := rulexml.Serialize(rule)
		if err != nil {
			respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		b, _ := json.Marshal(map[string]string{
			"applicationName": rule.ApplicationName,
			"name":            rule.Name,
			"status":          rule.Status,
			"xml":             string(xmlBytes),
		})
		encoded = append(encoded, b)
	}
	respondJSON(w, http.StatusOK, encoded)
}

func (h *handlers) addRule(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
		return
	}

	rule, err := rulexml.ParseBytes(body)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if rule.Status == "" {
		rule.Status = models.StatusEnabled
	}

	if err := h.engine.AddRule(r.Context(), rule); err != nil {
		respondError(w, err, http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"ruleId": rule.RuleID()})
}

func (h *handlers) getRule(w http.ResponseWriter, r *http.Request) {
	app, name := r.PathValue("app"), r.PathValue("name")
	rule, err := h.engine.GetRule(app, name)
	if err != nil {
		respondError(w, err, http.StatusNotFound)
		return
	}
	xmlBytes, err := rulexml.Serialize(rule)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(xmlBytes)
}

func (h *handlers) deleteRule(w http.ResponseWriter, r *http.Request) {
	app, name := r.PathValue("app"), r.PathValue("name")
	if err := h.engine.DeleteRule(r.Context(), app, name); err != nil {
		respondError(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) enableRule(w http.ResponseWriter, r *http.Request) {
	app, name := r.PathValue("app"), r.PathValue("name")
	if err := h.engine.EnableRule(r.Context(), app, name); err != nil {
		respondError(w, err, http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "enabled"})
}

func (h *handlers) disableRule(w http.ResponseWriter, r *http.Request) {
	app, name := r.PathValue("app"), r.PathValue("name")
	if err := h.engine.DisableRule(r.Context(), app, name); err != nil {
		respondError(w, err, http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
}

func (h *handlers) executeRule(w http.ResponseWriter, r *http.Request) {
	app, name := r.PathValue("app"), r.PathValue("name")

	var data []byte
	if body, err := io.ReadAll(r.Body); err == nil && len(body) > 0 {
		var req applicationDataRequest
		if err := json.Unmarshal(body, &req); err == nil && req.Data != "" {
			if decoded, err := decodeDoubleBase64(req.Data); err == nil {
				data = decoded
			}
		}
	}

	if err := h.engine.ExecuteRule(r.Context(), app, name, data); err != nil {
		respondError(w, err, http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "executed"})
}
