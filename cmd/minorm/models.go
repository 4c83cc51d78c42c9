package main

import "github.com/koustreak/minorm/internal/orm"

// declarations lists the models served by the binary.
func declarations() []orm.Declaration {
	return []orm.Declaration{
		{
			Model: "User",
			Table: "users",
			Attrs: []orm.Attr{
				{Name: "id", Value: orm.IntegerField("id", orm.PrimaryKey())},
				{Name: "name", Value: orm.StringField("username")},
				{Name: "email", Value: orm.StringField("email")},
				{Name: "password", Value: orm.StringField("password")},
			},
		},
	}
}
