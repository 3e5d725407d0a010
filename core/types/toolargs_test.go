package types

import "testing"

func TestParseToolCallUnion(t *testing.T) {
	cases := []struct {
		name string
		args ActionParams
		want Invocation
	}{
		{"shell", ActionParams{"command": "ls"}, ShellInvocation{Command: "ls"}},
		{"respond", ActionParams{"message": "hi"}, RespondInvocation{Message: "hi"}},
		{"fetch_url", ActionParams{"url": "https://x.test"}, FetchURLInvocation{URL: "https://x.test"}},
		{"move", ActionParams{"location": "desk"}, MoveInvocation{Location: "desk"}},
		{"web_search", ActionParams{"query": "tides"}, WebSearchInvocation{Query: "tides", MaxResults: 5}},
		{"web_search", ActionParams{"query": "tides", "max_results": float64(2)}, WebSearchInvocation{Query: "tides", MaxResults: 2}},
		{"web_fetch", ActionParams{"url": "https://x.test"}, WebFetchInvocation{URL: "https://x.test"}},
		{"teleport", ActionParams{}, UnknownInvocation{Name: "teleport"}},
	}
	for _, tc := range cases {
		got := ToolCall{Name: tc.name, Arguments: tc.args}.ParseToolCall()
		if got != tc.want {
			t.Errorf("%s: got %#v, want %#v", tc.name, got, tc.want)
		}
	}
}

func TestParseToolCallMistypedFields(t *testing.T) {
	inv := ToolCall{Name: "shell", Arguments: ActionParams{"command": 42}}.ParseToolCall()
	if _, ok := inv.(ShellInvocation); !ok {
		t.Fatalf("got %#v", inv)
	}
}

func TestActionParamsRead(t *testing.T) {
	ap := ActionParams{}
	if err := ap.Read(`{"command": "ls -la"}`); err != nil {
		t.Fatal(err)
	}
	if ap["command"] != "ls -la" {
		t.Errorf("params = %v", ap)
	}
	if err := (ActionParams{}).Read("{broken"); err == nil {
		t.Error("malformed JSON should error")
	}
}

func TestRoomLocations(t *testing.T) {
	for _, name := range LocationNames {
		p, ok := RoomLocation(name)
		if !ok {
			t.Errorf("location %q missing", name)
			continue
		}
		if p.X < 0 || p.X >= RoomCols || p.Y < 0 || p.Y >= RoomRows {
			t.Errorf("location %q out of bounds: %v", name, p)
		}
	}
	if _, ok := RoomLocation("bathroom"); ok {
		t.Error("unknown location resolved")
	}
}
