package types

import "testing"

func TestNodeValidate(t *testing.T) {
	tests := []struct {
		name    string
		node    Node
		wantErr error
	}{
		{
			name:    "valid node",
			node:    Node{ID: "n1", Index: "corpus", Name: "Alice"},
			wantErr: nil,
		},
		{
			name:    "empty id",
			node:    Node{Index: "corpus", Name: "Alice"},
			wantErr: ErrEmptyID,
		},
		{
			name:    "empty index",
			node:    Node{ID: "n1", Name: "Alice"},
			wantErr: ErrEmptyIndex,
		},
		{
			name:    "empty name",
			node:    Node{ID: "n1", Index: "corpus"},
			wantErr: ErrEmptyName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.node.Validate(); err != tt.wantErr {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNodeDescText(t *testing.T) {
	n := Node{ID: "n1", Index: "corpus", Name: "Alice", Type: "Person", Desc: "a doctor"}
	want := "Name:Alice;Type:Person;Desc:a doctor"
	if got := n.DescText(); got != want {
		t.Errorf("DescText() = %q, want %q", got, want)
	}
}
