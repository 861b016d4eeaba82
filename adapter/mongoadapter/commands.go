/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package mongoadapter

import (
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ParseCommands parses a change body written in Extended JSON into a list of command documents.
// The body is either a single document or an array of documents. An empty body
// or an empty array yields no commands.
func ParseCommands(body string) ([]bson.D, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, nil
	}

	// Extended JSON must be a document at the top level.
	var wrapper bson.D
	if err := bson.UnmarshalExtJSON([]byte(`{"commands":`+body+"\n}"), false, &wrapper); err != nil {
		return nil, fmt.Errorf("parse extended JSON: %w", err)
	}
	if len(wrapper) != 1 {
		return nil, errors.New("body must be a single document or an array of documents")
	}

	switch v := wrapper[0].Value.(type) {
	case bson.D:
		if len(v) == 0 {
			return nil, errors.New("command document cannot be empty")
		}
		return []bson.D{v}, nil
	case bson.A:
		commands := make([]bson.D, 0, len(v))
		for i, elem := range v {
			cmd, ok := elem.(bson.D)
			if !ok {
				return nil, fmt.Errorf("element %d is not a document", i+1)
			}
			if len(cmd) == 0 {
				return nil, fmt.Errorf("element %d: command document cannot be empty", i+1)
			}
			commands = append(commands, cmd)
		}
		return commands, nil
	default:
		return nil, fmt.Errorf("body must be a document or an array of documents, got %T", v)
	}
}

func commandName(cmd bson.D) string {
	if len(cmd) == 0 {
		return ""
	}
	return cmd[0].Key
}
