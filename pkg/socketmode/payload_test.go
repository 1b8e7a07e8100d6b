package socketmode

import (
	"encoding/json"
	"testing"
)

func TestOptionsResponseJSON(t *testing.T) {
	tests := []struct {
		name string
		resp *OptionsResponse
		want string
	}{
		{
			name: "empty",
			resp: &OptionsResponse{},
			want: `{"options":[]}`,
		},
		{
			name: "options",
			resp: &OptionsResponse{Options: []Option{{Label: "A", Value: "a"}}},
			want: `{"options":[{"label":"A","value":"a"}]}`,
		},
		{
			name: "option_groups",
			resp: &OptionsResponse{OptionGroups: []OptionGroup{{
				Label:   json.RawMessage(`"G"`),
				Options: []Option{{Label: "B", Value: "b"}},
			}}},
			want: `{"option_groups":[{"label":"G","options":[{"label":"B","value":"b"}]}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.resp)
			if err != nil {
				t.Fatalf("json.Marshal() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("json.Marshal() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAckWithEmptyOptions(t *testing.T) {
	got, err := json.Marshal(Ack{EnvelopeID: "1", Payload: &OptionsResponse{}})
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if want := `{"envelope_id":"1","payload":{"options":[]}}`; string(got) != want {
		t.Errorf("json.Marshal() = %s, want %s", got, want)
	}
}
