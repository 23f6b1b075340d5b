package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

type seedPermission struct {
	Codename string
	Name     string
	Desc     string
	Resource string
	Action   string
}

type seedRole struct {
	Name      string
	Desc      string
	Priority  int
	IsSystem  bool
	IsDefault bool
	Perms     []string // codenames; nil means every seeded permission
}

var defaultPermissions = []seedPermission{
	{"user.create", "Create users", "Can create user accounts", "user", "create"},
	{"user.read", "Read users", "Can view user accounts", "user", "read"},
	{"user.update", "Update users", "Can modify user accounts", "user", "update"},
	{"user.delete", "Delete users", "Can delete user accounts", "user", "delete"},
	{"user.list", "List users", "Can list and search user accounts", "user", "list"},
	{"role.create", "Create roles", "Can create roles", "role", "create"},
	{"role.read", "Read roles", "Can view roles", "role", "read"},
	{"role.update", "Update roles", "Can modify roles", "role", "update"},
	{"role.delete", "Delete roles", "Can delete roles", "role", "delete"},
	{"role.assign", "Assign roles", "Can assign roles to users", "role", "assign"},
	{"permission.create", "Create permissions", "Can create permissions", "permission", "create"},
	{"permission.read", "Read permissions", "Can view permissions", "permission", "read"},
	{"permission.update", "Update permissions", "Can modify permissions", "permission", "update"},
	{"permission.delete", "Delete permissions", "Can delete permissions", "permission", "delete"},
	{"profile.view_own", "View own profile", "Can view own profile", "profile", "view_own"},
	{"profile.update_own", "Update own profile", "Can update own profile", "profile", "update_own"},
	{"profile.view_any", "View any profile", "Can view any profile", "profile", "view_any"},
	{"system.stats", "View system stats", "Can view system statistics", "system", "stats"},
	{"system.admin", "System administration", "Full system administration", "system", "admin"},
}

var defaultRoles = []seedRole{
	{
		Name: "admin", Desc: "Full administrator", Priority: 100, IsSystem: true,
		Perms: nil,
	},
	{
		Name: "user_manager", Desc: "Manages user accounts", Priority: 80,
		Perms: []string{
			"user.create", "user.read", "user.update", "user.list",
			"profile.view_any", "role.read", "role.assign",
		},
	},
	{
		Name: "moderator", Desc: "Moderates user content and profiles", Priority: 60,
		Perms: []string{
			"user.read", "user.update", "user.list",
			"profile.view_any", "role.read",
		},
	},
	{
		Name: "user", Desc: "Regular user", Priority: 10, IsDefault: true,
		Perms: []string{"profile.view_own", "profile.update_own"},
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with the default permission and role catalog",
	Long:  `Seed the database with the default permissions and roles. Safe to run repeatedly; existing rows are kept.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		_, db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		if clearData {
			fmt.Println("Clearing existing role and permission data")
			for _, table := range []string{"role_permissions", "user_roles", "permissions", "roles"} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
		}

		for _, p := range defaultPermissions {
			var pid int64
			row := db.Raw("SELECT id FROM permissions WHERE codename = ?", p.Codename).Row()
			if err := row.Scan(&pid); err != nil {
				if err := db.Exec(
					"INSERT INTO permissions (codename, name, description, resource, action, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, true, now(), now())",
					p.Codename, p.Name, p.Desc, p.Resource, p.Action,
				).Error; err != nil {
					log.Fatalf("failed to insert permission %s: %v", p.Codename, err)
				}
				fmt.Println("Seeded permission:", p.Codename)
			}
		}

		permissionIDs := make(map[string]int64, len(defaultPermissions))
		for _, p := range defaultPermissions {
			var pid int64
			if err := db.Raw("SELECT id FROM permissions WHERE codename = ?", p.Codename).Row().Scan(&pid); err != nil {
				log.Fatalf("permission not found after insert %s: %v", p.Codename, err)
			}
			permissionIDs[p.Codename] = pid
		}

		for _, r := range defaultRoles {
			var rid int64
			row := db.Raw("SELECT id FROM roles WHERE name = ?", r.Name).Row()
			if err := row.Scan(&rid); err != nil {
				if err := db.Exec(
					"INSERT INTO roles (name, description, priority, is_system, is_default, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, true, now(), now())",
					r.Name, r.Desc, r.Priority, r.IsSystem, r.IsDefault,
				).Error; err != nil {
					log.Fatalf("failed to insert role %s: %v", r.Name, err)
				}
				fmt.Println("Seeded role:", r.Name)

				if err := db.Raw("SELECT id FROM roles WHERE name = ?", r.Name).Row().Scan(&rid); err != nil {
					log.Fatalf("role not found after insert %s: %v", r.Name, err)
				}
			}

			codenames := r.Perms
			if codenames == nil {
				codenames = make([]string, 0, len(defaultPermissions))
				for _, p := range defaultPermissions {
					codenames = append(codenames, p.Codename)
				}
			}

			for _, codename := range codenames {
				pid, ok := permissionIDs[codename]
				if !ok {
					log.Fatalf("role %s references unknown permission %s", r.Name, codename)
				}

				var exists int
				if err := db.Raw("SELECT 1 FROM role_permissions WHERE role_id = ? AND permission_id = ?", rid, pid).Row().Scan(&exists); err == nil {
					continue
				}

				if err := db.Exec("INSERT INTO role_permissions (role_id, permission_id) VALUES (?, ?)", rid, pid).Error; err != nil {
					log.Fatalf("failed to grant permission %s to role %s: %v", codename, r.Name, err)
				}
			}
			fmt.Printf("Granted %d permissions to role: %s\n", len(codenames), r.Name)
		}

		fmt.Println("Default permission and role catalog seeded successfully")
	},
}
