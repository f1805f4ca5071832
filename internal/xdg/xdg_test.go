package xdg

import "testing"

func TestPaths(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		lookup func() (string, error)
		want   string
	}{
		{
			name:   "config dir from XDG_CONFIG_HOME",
			env:    map[string]string{"XDG_CONFIG_HOME": "/etc/xdg"},
			lookup: ConfigDir,
			want:   "/etc/xdg/authkeep",
		},
		{
			name:   "config dir under home",
			env:    map[string]string{"XDG_CONFIG_HOME": "", "HOME": "/home/svc"},
			lookup: ConfigDir,
			want:   "/home/svc/.config/authkeep",
		},
		{
			name:   "config file",
			env:    map[string]string{"XDG_CONFIG_HOME": "/etc/xdg"},
			lookup: ConfigFile,
			want:   "/etc/xdg/authkeep/config.yaml",
		},
		{
			name:   "data dir from XDG_DATA_HOME",
			env:    map[string]string{"XDG_DATA_HOME": "/var/lib"},
			lookup: DataDir,
			want:   "/var/lib/authkeep",
		},
		{
			name:   "data dir under home",
			env:    map[string]string{"XDG_DATA_HOME": "", "HOME": "/home/svc"},
			lookup: DataDir,
			want:   "/home/svc/.local/share/authkeep",
		},
		{
			name:   "certs dir",
			env:    map[string]string{"XDG_DATA_HOME": "/var/lib"},
			lookup: CertsDir,
			want:   "/var/lib/authkeep/certs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			got, err := tt.lookup()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
