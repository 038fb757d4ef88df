package database

import "testing"

func TestConnectRetriesFloorsAtOne(t *testing.T) {
	cases := []struct {
		value string
		want  int
	}{
		{"", 5},
		{"3", 3},
		{"0", 1},
		{"-2", 1},
		{"garbage", 1},
	}
	for _, tc := range cases {
		t.Setenv("DB_CONNECT_RETRIES", tc.value)
		if got := connectRetries(); got != tc.want {
			t.Errorf("DB_CONNECT_RETRIES=%q: expected %d retries, got %d", tc.value, tc.want, got)
		}
	}
}
