package store

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/classlink/internal/store/core"
)

func char(name string, n int) core.Column {
	return core.Column{Name: name, Type: core.TypeChar, Length: n, NotNull: true}
}

func text(name string) core.Column {
	return core.Column{Name: name, Type: core.TypeText}
}

func integer(name string) core.Column {
	return core.Column{Name: name, Type: core.TypeInteger, NotNull: true}
}

// BaselineTables es el esquema previo a la primera versión con upgrade:
// las tablas del plugin en su forma original más las del host que este
// core lee. Las columnas que agregan los pasos de upgrade no están acá.
func BaselineTables() []core.Table {
	return []core.Table{
		{Name: TableToken, Columns: []core.Column{
			char("classlinkuniqid", 255),
			char("username", 100),
			char("scope", 100),
			char("resource", 127),
			text("authcode"),
			text("token"),
			integer("expiry"),
			text("refreshtoken"),
			text("idtoken"),
			integer("timecreated"),
			integer("timemodified"),
		}},
		{Name: TableState, Columns: []core.Column{
			char("sessionkey", 10),
			char("state", 15),
			char("nonce", 15),
			integer("timecreated"),
		}},
		{Name: TableUsers, Columns: []core.Column{
			char("username", 100),
			char("auth", 20),
			char("password", 255),
			integer("deleted"),
			integer("timecreated"),
			integer("timemodified"),
		}},
		{Name: TablePlugins, Columns: []core.Column{
			char("plugin", 100),
			char("name", 100),
			text("value"),
		}},
		{Name: TableO365Object, Columns: []core.Column{
			char("type", 128),
			char("o365name", 255),
			char("objectid", 128),
			integer("moodleid"),
		}},
	}
}

// PrevLoginTable es la tabla que crea el paso 2015012707.
func PrevLoginTable() core.Table {
	return core.Table{Name: TablePrevLogin, Columns: []core.Column{
		integer("userid"),
		char("method", 50),
		char("password", 255),
	}}
}

// EnsureTables crea las tablas que falten. Las existentes no se tocan.
func EnsureTables(ctx context.Context, s core.Schema, tables ...core.Table) ([]string, error) {
	var created []string
	for _, t := range tables {
		ok, err := s.TableExists(ctx, t.Name)
		if err != nil {
			return created, fmt.Errorf("check table %s: %w", t.Name, err)
		}
		if ok {
			continue
		}
		if err := s.CreateTable(ctx, t); err != nil {
			return created, err
		}
		created = append(created, t.Name)
	}
	return created, nil
}
