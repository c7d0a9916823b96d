package repository

import "errors"

// ErrDuplicateEmail はメールアドレスのUNIQUE制約違反を表す。
var ErrDuplicateEmail = errors.New("repository: email already exists")

// pqUniqueViolation はPostgreSQLのunique_violationのエラーコード。
const pqUniqueViolation = "23505"
