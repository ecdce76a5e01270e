package database

import "database/sql"

// execRequireRows turns a zero-row UPDATE or DELETE into notFoundErr.
// State transitions and setters rely on it so a stale id surfaces as a
// not-found error instead of a silent no-op.
func execRequireRows(result sql.Result, err, notFoundErr error) error {
	if err != nil {
		return err
	}
	affected, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return rowsErr
	}
	if affected == 0 {
		return notFoundErr
	}
	return nil
}
