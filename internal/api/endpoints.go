package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"remindercal/internal/model"
)

const (
	pathSchedule      = "/api/reminder/schedule"
	pathSlotSave      = "/api/reminder/slot/save"
	pathSlotDelete    = "/api/reminder/slot/delete"
	pathPresetList    = "/api/reminder/preset/list"
	pathPresetSave    = "/api/reminder/preset/save"
	pathPresetDelete  = "/api/reminder/preset/delete"
	pathAudioList     = "/api/reminder/audio/list"
	pathAudioSave     = "/api/reminder/audio/save"
	pathAudioDelete   = "/api/reminder/audio/delete"
	pathSessionStatus = "/api/session/status"
	pathUsers         = "/api/users"
	pathUserCreate    = "/api/users/create"
	pathUserDelete    = "/api/users/delete"
	pathUserPassword  = "/api/users/reset-password"
)

type idBody struct {
	ID int64 `json:"id"`
}

// Schedule loads slots, audios, presets and the schedule timezone. Missing
// lists decode as empty; a missing timezone defaults to Asia/Shanghai.
func (c *Client) Schedule(ctx context.Context) (model.Schedule, error) {
	var env envelope
	if err := c.do(ctx, http.MethodGet, pathSchedule, nil, &env); err != nil {
		return model.Schedule{}, err
	}

	s, err := decodeSchedule(env.Data)
	if err != nil {
		return model.Schedule{}, err
	}
	if s.Timezone == "" {
		s.Timezone = model.DefaultTimezone
	}
	if s.Slots == nil {
		s.Slots = []model.Slot{}
	}
	if s.Audios == nil {
		s.Audios = []model.Audio{}
	}
	if s.Presets == nil {
		s.Presets = []model.Preset{}
	}
	return s, nil
}

func (c *Client) SaveSlot(ctx context.Context, p model.SlotPayload) error {
	return c.call(ctx, http.MethodPost, pathSlotSave, p, nil, "Save failed")
}

func (c *Client) DeleteSlot(ctx context.Context, id int64) error {
	return c.call(ctx, http.MethodPost, pathSlotDelete, idBody{ID: id}, nil, "Delete failed")
}

func (c *Client) Presets(ctx context.Context) ([]model.Preset, error) {
	out := []model.Preset{}
	if err := c.call(ctx, http.MethodGet, pathPresetList, nil, &out, "Failed to load presets"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SavePreset(ctx context.Context, p model.PresetPayload) error {
	return c.call(ctx, http.MethodPost, pathPresetSave, p, nil, "Save failed")
}

func (c *Client) DeletePreset(ctx context.Context, id int64) error {
	return c.call(ctx, http.MethodPost, pathPresetDelete, idBody{ID: id}, nil, "Delete failed")
}

func (c *Client) Audios(ctx context.Context) ([]model.Audio, error) {
	out := []model.Audio{}
	if err := c.call(ctx, http.MethodGet, pathAudioList, nil, &out, "Failed to load audios"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SaveAudio(ctx context.Context, p model.AudioPayload) error {
	return c.call(ctx, http.MethodPost, pathAudioSave, p, nil, "Save failed")
}

func (c *Client) DeleteAudio(ctx context.Context, id int64) error {
	return c.call(ctx, http.MethodPost, pathAudioDelete, idBody{ID: id}, nil, "Delete failed")
}

// SessionStatus reports whether the current cookie jar holds a live login.
func (c *Client) SessionStatus(ctx context.Context) (bool, error) {
	var status struct {
		LoggedIn bool `json:"loggedIn"`
	}
	if err := c.do(ctx, http.MethodGet, pathSessionStatus, nil, &status); err != nil {
		return false, err
	}
	return status.LoggedIn, nil
}

func (c *Client) Users(ctx context.Context) ([]model.User, error) {
	out := []model.User{}
	if err := c.call(ctx, http.MethodGet, pathUsers, nil, &out, "Failed to load users."); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateUser(ctx context.Context, p model.CreateUserPayload) error {
	return c.call(ctx, http.MethodPost, pathUserCreate, p, nil, "Create failed.")
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.call(ctx, http.MethodPost, pathUserDelete, idBody{ID: id}, nil, "Delete failed.")
}

func (c *Client) ResetPassword(ctx context.Context, p model.ResetPasswordPayload) error {
	return c.call(ctx, http.MethodPost, pathUserPassword, p, nil, "Update failed.")
}

// decodeSchedule tolerates a missing data object and non-array lists.
func decodeSchedule(data json.RawMessage) (model.Schedule, error) {
	var s model.Schedule
	if len(data) == 0 || string(data) == "null" {
		return s, nil
	}
	var raw struct {
		Timezone string          `json:"timezone"`
		Slots    json.RawMessage `json:"slots"`
		Audios   json.RawMessage `json:"audios"`
		Presets  json.RawMessage `json:"presets"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return s, fmt.Errorf("decode schedule: %w", err)
	}
	s.Timezone = raw.Timezone
	if err := decodeList(raw.Slots, &s.Slots); err != nil {
		return s, fmt.Errorf("decode schedule slots: %w", err)
	}
	if err := decodeList(raw.Audios, &s.Audios); err != nil {
		return s, fmt.Errorf("decode schedule audios: %w", err)
	}
	if err := decodeList(raw.Presets, &s.Presets); err != nil {
		return s, fmt.Errorf("decode schedule presets: %w", err)
	}
	return s, nil
}

func decodeList(raw json.RawMessage, out any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}
	return json.Unmarshal(raw, out)
}
