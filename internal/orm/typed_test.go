package orm

import (
	"context"
	"reflect"
	"testing"

	"github.com/koustreak/minorm/internal/database"
	"github.com/koustreak/minorm/internal/errs"
	"github.com/koustreak/minorm/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type account struct {
	ID       int64    `orm:"id,pk"`
	Name     string   `orm:"username,type=varchar(50)"`
	Email    *string  `orm:"email"`
	Password *string  `orm:"password,default=changeme"`
	Note     string   `orm:"-"`
	Score    *float64 `orm:"score,default=1.5"`
	Ignored  string
}

func strPtr(s string) *string { return &s }

func TestNewModel_Tags(t *testing.T) {
	m, err := NewModel[account](NewRegistry(logger.Nop()), "Account", "users")
	require.NoError(t, err)

	tbl := m.Table()
	assert.Equal(t, "users", tbl.Name)
	assert.Equal(t, "id", tbl.PrimaryKey)
	assert.Equal(t, []string{"username", "email", "password", "score"}, tbl.Fields)

	name, _ := tbl.Field("username")
	assert.Equal(t, "varchar(50)", name.ColumnType)
	pw, _ := tbl.Field("password")
	assert.Equal(t, "changeme", pw.Default)
	score, _ := tbl.Field("score")
	assert.Equal(t, KindFloat, score.Kind)
	assert.Equal(t, 1.5, score.Default)
}

func TestNewModel_Errors(t *testing.T) {
	reg := NewRegistry(logger.Nop())

	type noKey struct {
		Name string `orm:"name"`
	}
	_, err := NewModel[noKey](reg, "NoKey", "")
	assert.True(t, errs.IsSchema(err))

	type badType struct {
		ID   int64    `orm:"id,pk"`
		Tags []string `orm:"tags"`
	}
	_, err = NewModel[badType](reg, "BadType", "")
	assert.True(t, errs.IsSchema(err))

	type badDefault struct {
		ID int64 `orm:"id,pk,default=abc"`
	}
	_, err = NewModel[badDefault](reg, "BadDefault", "")
	assert.True(t, errs.IsSchema(err))

	type badOption struct {
		ID int64 `orm:"id,pk,unique"`
	}
	_, err = NewModel[badOption](reg, "BadOption", "")
	assert.True(t, errs.IsSchema(err))

	type badText struct {
		ID int64 `orm:"id,pk,text"`
	}
	_, err = NewModel[badText](reg, "BadText", "")
	assert.True(t, errs.IsSchema(err))

	_, err = NewModel[int](reg, "Scalar", "")
	assert.True(t, errs.IsSchema(err))
}

func TestModel_Record(t *testing.T) {
	m, err := NewModel[account](NewRegistry(logger.Nop()), "Account", "users")
	require.NoError(t, err)

	rec := m.Record(&account{ID: 3, Name: "n", Email: strPtr("e")})
	assert.Equal(t, map[string]any{"id": int64(3), "username": "n", "email": "e"}, rec.Values())
	assert.Equal(t, "changeme", rec.GetValueOrDefault("password"))
}

func TestModel_RoundTrip_SQLite(t *testing.T) {
	ctx := context.Background()
	pool := newSQLitePool(t)
	_, err := pool.Execute(ctx, "alter table `users` add column `score` real", nil)
	require.NoError(t, err)

	m, err := NewModel[account](NewRegistry(logger.Nop()), "Account", "users")
	require.NoError(t, err)
	require.NoError(t, m.Table().Verify(ctx, pool))

	a := &account{ID: 1, Name: "fengxi", Email: strPtr("a@b.com")}
	require.NoError(t, m.Save(ctx, pool, a))
	require.NotNil(t, a.Password)
	assert.Equal(t, "changeme", *a.Password)
	require.NotNil(t, a.Score)
	assert.Equal(t, 1.5, *a.Score)

	got, err := m.Find(ctx, pool, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a, got)

	none, err := m.Find(ctx, pool, 2)
	require.NoError(t, err)
	assert.Nil(t, none)

	got.Email = nil
	require.NoError(t, m.Update(ctx, pool, got))
	again, err := m.Find(ctx, pool, 1)
	require.NoError(t, err)
	assert.Nil(t, again.Email)

	require.NoError(t, m.Save(ctx, pool, &account{ID: 2, Name: "z"}))
	list, err := m.FindAll(ctx, pool, database.NewFilter().OrderBy("username", database.Desc))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "z", list[0].Name)

	n, err := m.Count(ctx, pool, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, m.Remove(ctx, pool, &account{ID: 2}))
	n, err = m.Count(ctx, pool, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSetFieldValue(t *testing.T) {
	var dst struct {
		B  bool
		I  int
		U  uint8
		F  float32
		S  string
		PS *string
	}

	require.NoError(t, setFieldValue(reflectField(&dst, "B"), int64(1)))
	require.NoError(t, setFieldValue(reflectField(&dst, "I"), "42"))
	require.NoError(t, setFieldValue(reflectField(&dst, "U"), int64(200)))
	require.NoError(t, setFieldValue(reflectField(&dst, "F"), 2.5))
	require.NoError(t, setFieldValue(reflectField(&dst, "S"), []byte("hi")))
	require.NoError(t, setFieldValue(reflectField(&dst, "PS"), "p"))

	assert.True(t, dst.B)
	assert.Equal(t, 42, dst.I)
	assert.Equal(t, uint8(200), dst.U)
	assert.Equal(t, float32(2.5), dst.F)
	assert.Equal(t, "hi", dst.S)
	assert.Equal(t, "p", *dst.PS)

	assert.Error(t, setFieldValue(reflectField(&dst, "U"), int64(300)))
	assert.Error(t, setFieldValue(reflectField(&dst, "I"), "x"))
	assert.Error(t, setFieldValue(reflectField(&dst, "S"), 12))

	require.NoError(t, setFieldValue(reflectField(&dst, "PS"), nil))
	assert.Nil(t, dst.PS)
}

func reflectField(v any, name string) reflect.Value {
	return reflect.ValueOf(v).Elem().FieldByName(name)
}
