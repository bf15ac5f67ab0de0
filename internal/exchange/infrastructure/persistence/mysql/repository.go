// Package mysql 领域仓储的 GORM 实现。
// 所有仓储共享同一个 *db.DB；事务内通过 context 下发的事务句柄执行。
package mysql

import (
	"context"
	"errors"

	driver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/cambiosur/exchange/internal/exchange/domain"
	"github.com/cambiosur/exchange/pkg/db"
)

// mysql 错误码：1205 锁等待超时，1213 死锁
const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// session 返回当前应使用的数据库句柄：事务内用事务句柄，否则用连接池
func session(ctx context.Context, d *db.DB) *gorm.DB {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return d.DB.WithContext(ctx)
}

// translateErr 将驱动层错误映射为领域错误
func translateErr(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	var mysqlErr *driver.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case errLockWaitTimeout, errDeadlock:
			return domain.ErrLockTimeout
		}
	}
	return err
}
