package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// document is the on-disk manifest shape shared by both schemas
type document struct {
	Package     string  `json:"package"`
	AppType     *string `json:"appType"`
	VersionName string  `json:"versionName"`
	Name        string  `json:"name"`
	Icon        string  `json:"icon"`
	Entry       *string `json:"entry"`
	ExecFile    *string `json:"execfile"`

	Activities []activityEntry `json:"activities"`
	Services   []serviceEntry  `json:"services"`

	// quick app only
	VersionCode int            `json:"versionCode"`
	Features    []featureEntry `json:"features"`
	Router      routerEntry    `json:"router"`
}

type intentFilter struct {
	Actions []string `json:"actions"`
}

type activityEntry struct {
	Name         string       `json:"name"`
	LaunchMode   *string      `json:"launchMode"`
	TaskAffinity *string      `json:"taskAffinity"`
	IntentFilter intentFilter `json:"intent-filter"`
}

type serviceEntry struct {
	Name         string       `json:"name"`
	Path         string       `json:"path"`
	Exported     bool         `json:"exported"`
	IntentFilter intentFilter `json:"intent-filter"`
}

type featureEntry struct {
	Name string `json:"name"`
}

type routerEntry struct {
	Entry string      `json:"entry"`
	Pages orderedKeys `json:"pages"`
}

// orderedKeys collects the member names of a JSON object in document order.
// Values are skipped. A non-object value decodes to an empty list.
type orderedKeys []string

func (k *orderedKeys) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		*k = nil
		return nil
	}

	keys := orderedKeys{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected object key %v", tok)
		}

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return err
		}
		keys = append(keys, key)
	}

	*k = keys
	return nil
}

func stringOr(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}
