package store

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/blang/semver"
	"github.com/pkg/errors"
)

const currentVersionKey = "CurrentVersion"

// GetCurrentVersion returns the schema version recorded in the
// database. A database without the System table is at 0.0.0.
func (sqlStore *SQLStore) GetCurrentVersion() (semver.Version, error) {
	exists, err := sqlStore.tableExists("System")
	if err != nil {
		return semver.Version{}, err
	}
	if !exists {
		return semver.MustParse("0.0.0"), nil
	}

	var value string
	err = sqlStore.getBuilder(sqlStore.db, &value,
		sq.Select("Value").From("System").Where(sq.Eq{"Key": currentVersionKey}),
	)
	if err == sql.ErrNoRows {
		return semver.MustParse("0.0.0"), nil
	} else if err != nil {
		return semver.Version{}, errors.Wrap(err, "failed to query current schema version")
	}

	version, err := semver.Parse(value)
	if err != nil {
		return semver.Version{}, errors.Wrapf(err, "failed to parse current schema version %q", value)
	}

	return version, nil
}

// Migrate advances the schema to the latest version, applying each
// pending migration in its own database transaction.
func (sqlStore *SQLStore) Migrate() error {
	currentVersion, err := sqlStore.GetCurrentVersion()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if !currentVersion.EQ(m.fromVersion) {
			continue
		}

		err = sqlStore.applyMigration(m)
		if err != nil {
			return errors.Wrapf(err, "failed to migrate from %s to %s", m.fromVersion, m.toVersion)
		}

		sqlStore.logger.Infof("Migrated database schema from %s to %s", m.fromVersion, m.toVersion)
		currentVersion = m.toVersion
	}

	return nil
}

func (sqlStore *SQLStore) applyMigration(m migration) error {
	tx, err := sqlStore.beginTransaction(sqlStore.db)
	if err != nil {
		return err
	}
	defer tx.RollbackUnlessCommitted()

	err = m.migrationFunc(tx)
	if err != nil {
		return err
	}

	if m.fromVersion.EQ(semver.MustParse("0.0.0")) {
		_, err = sqlStore.execBuilder(tx, sq.Insert("System").
			Columns("Key", "Value").
			Values(currentVersionKey, m.toVersion.String()),
		)
	} else {
		_, err = sqlStore.execBuilder(tx, sq.Update("System").
			Set("Value", m.toVersion.String()).
			Where(sq.Eq{"Key": currentVersionKey}),
		)
	}
	if err != nil {
		return errors.Wrap(err, "failed to record schema version")
	}

	return tx.Commit()
}
