/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package postgresql

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/go-errors/errors"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noctarius/cdc-relay/internal/logging"
	spiconfig "github.com/noctarius/cdc-relay/spi/config"
	"github.com/noctarius/cdc-relay/spi/statestorage"
)

const (
	defaultTable     = "cdc_relay_offsets"
	statementTimeout = time.Second * 10
)

func init() {
	statestorage.RegisterStateStorage(spiconfig.PostgresqlStorage, newPostgresqlStateStorage)
}

// postgresqlStateStorage keeps one row per source partition,
// every save is a single upsert statement
type postgresqlStateStorage struct {
	connection string
	table      string
	pool       *pgxpool.Pool
	logger     *logging.Logger
}

func newPostgresqlStateStorage(
	config *spiconfig.Config,
) (statestorage.Storage, error) {

	connection := spiconfig.GetOrDefault(config, spiconfig.PropertyPostgresqlStorageConnection, "")
	if connection == "" {
		connection = spiconfig.GetOrDefault(config, spiconfig.PropertyDatabaseConnection, "")
	}
	if connection == "" {
		return nil, errors.Errorf("PostgresqlStateStorage needs a connection to be configured")
	}
	table := spiconfig.GetOrDefault(config, spiconfig.PropertyPostgresqlStorageTable, defaultTable)
	return NewPostgresqlStateStorage(connection, table)
}

func NewPostgresqlStateStorage(
	connection, table string,
) (statestorage.Storage, error) {

	logger, err := logging.NewLogger("PostgresqlStateStorage")
	if err != nil {
		return nil, err
	}

	if table == "" {
		table = defaultTable
	}

	return &postgresqlStateStorage{
		connection: connection,
		table:      pgx.Identifier{table}.Sanitize(),
		logger:     logger,
	}, nil
}

func (p *postgresqlStateStorage) Start() error {
	p.logger.Infof("Starting PostgresqlStateStorage using table %s", p.table)

	ctx, cancel := context.WithTimeout(context.Background(), statementTimeout)
	defer cancel()

	config, err := pgxpool.ParseConfig(p.connection)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	p.pool = pool

	if _, err := pool.Exec(ctx, fmt.Sprintf(probeTableQuery, p.table)); err != nil {
		if !isUndefinedTable(err) {
			return errors.Wrap(err, 0)
		}
		return p.createTable(ctx)
	}
	return nil
}

func (p *postgresqlStateStorage) Stop() error {
	p.logger.Infof("Stopping PostgresqlStateStorage")
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
	return nil
}

func (p *postgresqlStateStorage) Save(
	position *statestorage.Position,
) error {

	if err := p.ensureOpen(); err != nil {
		return err
	}

	offset, err := position.MarshalBinary()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), statementTimeout)
	defer cancel()

	upsert := func() error {
		_, err := p.pool.Exec(
			ctx, fmt.Sprintf(upsertPositionQuery, p.table),
			position.SourcePartition(), offset, time.Now().UTC(),
		)
		return err
	}

	if err := upsert(); err != nil {
		// table may have been dropped while running
		if !isUndefinedTable(err) {
			return errors.Wrap(err, 0)
		}
		if err := p.createTable(ctx); err != nil {
			return err
		}
		if err := upsert(); err != nil {
			return errors.Wrap(err, 0)
		}
	}
	return nil
}

func (p *postgresqlStateStorage) Load(
	sourcePartition string,
) (*statestorage.Position, bool, error) {

	if err := p.ensureOpen(); err != nil {
		return nil, false, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), statementTimeout)
	defer cancel()

	var offset []byte
	err := p.pool.QueryRow(ctx, fmt.Sprintf(selectPositionQuery, p.table), sourcePartition).Scan(&offset)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) || isUndefinedTable(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, 0)
	}

	position := &statestorage.Position{}
	if err := position.UnmarshalBinary(offset); err != nil {
		return nil, false, err
	}
	return position, true, nil
}

func (p *postgresqlStateStorage) LoadAll() (map[string]*statestorage.Position, error) {
	if err := p.ensureOpen(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), statementTimeout)
	defer cancel()

	rows, err := p.pool.Query(ctx, fmt.Sprintf(selectPositionsQuery, p.table))
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	defer rows.Close()

	positions := make(map[string]*statestorage.Position)
	for rows.Next() {
		var sourcePartition string
		var offset []byte
		if err := rows.Scan(&sourcePartition, &offset); err != nil {
			return nil, errors.Wrap(err, 0)
		}

		position := &statestorage.Position{}
		if err := position.UnmarshalBinary(offset); err != nil {
			return nil, err
		}
		positions[sourcePartition] = position
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return positions, nil
}

func (p *postgresqlStateStorage) Delete(
	sourcePartition string,
) error {

	if err := p.ensureOpen(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), statementTimeout)
	defer cancel()

	if _, err := p.pool.Exec(ctx, fmt.Sprintf(deletePositionQuery, p.table), sourcePartition); err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}

func (p *postgresqlStateStorage) createTable(
	ctx context.Context,
) error {

	p.logger.Infof("Creating offset table %s", p.table)
	if _, err := p.pool.Exec(ctx, fmt.Sprintf(createTableQuery, p.table)); err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}

func (p *postgresqlStateStorage) ensureOpen() error {
	if p.pool == nil {
		return errors.Errorf("PostgresqlStateStorage isn't started")
	}
	return nil
}

func isUndefinedTable(
	err error,
) bool {

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UndefinedTable
	}
	return false
}
