package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func migrationPair(up, down string) (*fstest.MapFile, *fstest.MapFile) {
	return &fstest.MapFile{Data: []byte(up)}, &fstest.MapFile{Data: []byte(down)}
}

func TestLoadMigrationsFromFS_SortsByVersion(t *testing.T) {
	t.Parallel()

	up1, down1 := migrationPair("CREATE TABLE a (id INT);", "DROP TABLE a;")
	up2, down2 := migrationPair("CREATE TABLE b (id INT);", "DROP TABLE b;")
	fsys := fstest.MapFS{
		"sql/migrations/0002_more.up.sql":   up2,
		"sql/migrations/0002_more.down.sql": down2,
		"sql/migrations/0001_init.up.sql":   up1,
		"sql/migrations/0001_init.down.sql": down1,
	}

	migrations, err := loadMigrationsFromFS(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, migration{Version: 1, Name: "init", UpSQL: "CREATE TABLE a (id INT);", DownSQL: "DROP TABLE a;"}, migrations[0])
	assert.Equal(t, "2_more", migrations[1].label())
	assert.Equal(t, "DROP TABLE b;", migrations[1].body(migrationDown))
}

func TestLoadMigrationsFromFS_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fsys    fstest.MapFS
		wantErr string
	}{
		{
			name:    "no files",
			fsys:    fstest.MapFS{},
			wantErr: "no migration files",
		},
		{
			name: "missing down",
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql": {Data: []byte("SELECT 1;")},
			},
			wantErr: "both up and down",
		},
		{
			name: "invalid name",
			fsys: fstest.MapFS{
				"sql/migrations/not_a_migration.sql": {Data: []byte("SELECT 1;")},
			},
			wantErr: "invalid migration file name",
		},
		{
			name: "empty body",
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql":   {Data: []byte("   \n")},
				"sql/migrations/0001_init.down.sql": {Data: []byte("SELECT 1;")},
			},
			wantErr: "empty",
		},
		{
			name: "name mismatch",
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql":    {Data: []byte("SELECT 1;")},
				"sql/migrations/0001_other.down.sql": {Data: []byte("SELECT 1;")},
			},
			wantErr: "name mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := loadMigrationsFromFS(tt.fsys)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadMigrationsFromFS_Embedded(t *testing.T) {
	t.Parallel()

	migrations, err := loadMigrationsFromFS(migrationsFS)
	require.NoError(t, err)
	require.Len(t, migrations, embeddedMigrationCount)
	for i, m := range migrations {
		assert.EqualValues(t, i+1, m.Version)
	}
	assert.Contains(t, migrations[1].UpSQL, "special_orders")
}

func TestPlanUp(t *testing.T) {
	t.Parallel()

	all := []migration{{Version: 1}, {Version: 2}, {Version: 3}, {Version: 4}}

	versions := func(plan []migration) []int64 {
		var out []int64
		for _, m := range plan {
			out = append(out, m.Version)
		}
		return out
	}

	assert.Equal(t, []int64{1, 2, 3, 4}, versions(planUp(all, nil, 0)))
	assert.Equal(t, []int64{3, 4}, versions(planUp(all, []int64{1, 2}, 0)))
	assert.Equal(t, []int64{2}, versions(planUp(all, []int64{1, 3}, 1)))
	assert.Empty(t, planUp(all, []int64{1, 2, 3, 4}, 0))
}

func TestPlanDown(t *testing.T) {
	t.Parallel()

	all := []migration{{Version: 1}, {Version: 2}, {Version: 3}}

	plan, err := planDown(all, []int64{1, 2, 3}, 2)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.EqualValues(t, 3, plan[0].Version)
	assert.EqualValues(t, 2, plan[1].Version)

	plan, err = planDown(all, []int64{1}, 5)
	require.NoError(t, err)
	require.Len(t, plan, 1)

	_, err = planDown(all, []int64{1, 7}, 1)
	require.ErrorContains(t, err, "unknown migration version 7")
}
