/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"database/sql"
	"sync"
	"time"

	"github.com/blnkfinance/qercas/config"
	"github.com/blnkfinance/qercas/internal/cache"
	"github.com/sirupsen/logrus"

	_ "github.com/lib/pq"
)

// Declare a package-level variable to hold the singleton instance.
var instance *Datasource
var once sync.Once

// Datasource is the PostgreSQL implementation of IDataSource. Cache is optional.
type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection returns the process-wide datasource, connecting on first use.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}

		c, errCache := cache.NewCache()
		if errCache != nil {
			logrus.Warnf("explanation cache disabled: %v", errCache)
			c = nil
		}
		instance = &Datasource{Conn: con, Cache: c}
	})
	if err != nil {
		once = sync.Once{}
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	err = db.Ping()
	if err != nil {
		logrus.Errorf("database Connection error ❌: %v", err)
		return nil, err
	}
	return db, nil
}
