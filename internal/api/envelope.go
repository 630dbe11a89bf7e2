package api

import (
	"bytes"
	"encoding/json"
)

var emptyArray = json.RawMessage("[]")

// unwrapData strips the outer {success, data} envelope when present.
// Endpoints without an envelope pass through untouched.
func unwrapData(raw json.RawMessage) json.RawMessage {
	if !looksLikeObject(raw) {
		return raw
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return raw
	}
	if data, ok := envelope["data"]; ok && len(data) > 0 {
		return data
	}
	return raw
}

// unwrapList digs a collection out of whichever envelope shape the endpoint
// happened to use. Fallback order: bare array, data, data.items, items,
// results. Anything else settles on an empty collection — view code must
// never have to guard against a missing list.
func unwrapList(raw json.RawMessage) json.RawMessage {
	if looksLikeArray(raw) {
		return raw
	}
	if !looksLikeObject(raw) {
		return emptyArray
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return emptyArray
	}

	if data, ok := envelope["data"]; ok {
		if looksLikeArray(data) {
			return data
		}
		if looksLikeObject(data) {
			var inner map[string]json.RawMessage
			if err := json.Unmarshal(data, &inner); err == nil {
				if items, ok := inner["items"]; ok && looksLikeArray(items) {
					return items
				}
			}
		}
	}
	if items, ok := envelope["items"]; ok && looksLikeArray(items) {
		return items
	}
	if results, ok := envelope["results"]; ok && looksLikeArray(results) {
		return results
	}
	return emptyArray
}

func looksLikeArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

func looksLikeObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}
