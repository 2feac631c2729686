package rbac

import "testing"

func TestAllows(t *testing.T) {
	tests := []struct {
		name     string
		role     string
		required string
		want     bool
	}{
		{"admin может всё", RoleAdmin, RoleAdmin, true},
		{"admin выполняет действия editor", RoleAdmin, RoleEditor, true},
		{"editor выполняет действия editor", RoleEditor, RoleEditor, true},
		{"editor не выполняет действия admin", RoleEditor, RoleAdmin, false},
		{"пустая роль", "", RoleEditor, false},
		{"неизвестная роль", "superuser", RoleEditor, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Allows(tt.role, tt.required); got != tt.want {
				t.Errorf("Allows(%q, %q) = %v, хотели %v", tt.role, tt.required, got, tt.want)
			}
		})
	}
}

func TestHighestRole(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  string
	}{
		{name: "пустой набор", roles: nil, want: ""},
		{name: "один admin", roles: []string{RoleAdmin}, want: RoleAdmin},
		{name: "один editor", roles: []string{RoleEditor}, want: RoleEditor},
		{name: "editor + admin", roles: []string{RoleEditor, RoleAdmin}, want: RoleAdmin},
		{name: "admin + editor", roles: []string{RoleAdmin, RoleEditor}, want: RoleAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HighestRole(tt.roles); got != tt.want {
				t.Errorf("HighestRole(%v) = %q, хотели %q", tt.roles, got, tt.want)
			}
		})
	}
}

func TestMapGroupsToRole(t *testing.T) {
	adminGroups := []string{"dongrigo-admins"}
	editorGroups := []string{"dongrigo-editors"}

	tests := []struct {
		name   string
		groups []string
		want   string
	}{
		{"группа admins -> admin", []string{"dongrigo-admins"}, RoleAdmin},
		{"группа editors -> editor", []string{"dongrigo-editors"}, RoleEditor},
		{"обе группы -> admin", []string{"dongrigo-editors", "dongrigo-admins"}, RoleAdmin},
		{"нет совпадений", []string{"other"}, ""},
		{"без групп", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapGroupsToRole(tt.groups, adminGroups, editorGroups); got != tt.want {
				t.Errorf("MapGroupsToRole(%v) = %q, хотели %q", tt.groups, got, tt.want)
			}
		})
	}
}

func TestIsValidRole(t *testing.T) {
	for _, r := range []string{RoleEditor, RoleAdmin} {
		if !IsValidRole(r) {
			t.Errorf("IsValidRole(%q) = false", r)
		}
	}
	for _, r := range []string{"", "readonly", "Admin"} {
		if IsValidRole(r) {
			t.Errorf("IsValidRole(%q) = true", r)
		}
	}
}
