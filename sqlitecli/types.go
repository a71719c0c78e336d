// Package sqlitecli is a call-level interface over SQLite.
package sqlitecli

import (
	"math"
	"strconv"
	"strings"
	"time"

	sqlcli "github.com/semihalev/go-sqlcli"
)

// column is the CLI view of one SQLite result column.
type column struct {
	name     string
	sqlType  sqlcli.SQLType
	size     int
	scale    int
	hasScale bool
}

const unbounded = math.MaxInt32

// parseDeclType maps a declared column type such as "VARCHAR(10)" or
// "DECIMAL(12,2)" to a CLI type with its size and scale.
func parseDeclType(decl string) column {
	decl = strings.ToUpper(strings.TrimSpace(decl))
	base, args := decl, ""
	if i := strings.IndexByte(decl, '('); i >= 0 {
		base = strings.TrimSpace(decl[:i])
		if j := strings.IndexByte(decl[i:], ')'); j >= 0 {
			args = decl[i+1 : i+j]
		}
	}
	base = strings.Join(strings.Fields(base), " ")

	var nums []int
	for _, a := range strings.Split(args, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(a)); err == nil {
			nums = append(nums, n)
		}
	}
	arg := func(i, def int) int {
		if i < len(nums) {
			return nums[i]
		}
		return def
	}

	c := column{}
	switch base {
	case "INTEGER", "INT", "INT4", "MEDIUMINT":
		c.sqlType, c.size = sqlcli.TypeInteger, 10
	case "BIGINT", "INT8", "UNSIGNED BIG INT":
		c.sqlType, c.size = sqlcli.TypeBigInt, 19
	case "SMALLINT", "INT2":
		c.sqlType, c.size = sqlcli.TypeSmallInt, 5
	case "TINYINT":
		c.sqlType, c.size = sqlcli.TypeTinyInt, 3
	case "REAL":
		c.sqlType, c.size = sqlcli.TypeReal, 7
	case "FLOAT":
		c.sqlType, c.size = sqlcli.TypeFloat, 15
	case "DOUBLE", "DOUBLE PRECISION":
		c.sqlType, c.size = sqlcli.TypeDouble, 15
	case "DECIMAL", "NUMERIC":
		c.sqlType = sqlcli.TypeDecimal
		if base == "NUMERIC" {
			c.sqlType = sqlcli.TypeNumeric
		}
		c.size = arg(0, 38)
		c.scale = arg(1, 0)
		c.hasScale = len(nums) > 1
	case "CHAR", "CHARACTER":
		c.sqlType, c.size = sqlcli.TypeChar, arg(0, 1)
	case "VARCHAR", "CHARACTER VARYING", "VARCHAR2", "VARYING CHARACTER":
		c.sqlType, c.size = sqlcli.TypeVarchar, arg(0, 255)
	case "NCHAR", "NATIONAL CHARACTER", "NATIVE CHARACTER":
		c.sqlType, c.size = sqlcli.TypeWChar, arg(0, 1)
	case "NVARCHAR", "NATIONAL CHARACTER VARYING", "NVARCHAR2":
		c.sqlType, c.size = sqlcli.TypeWVarchar, arg(0, 255)
	case "TEXT", "CLOB", "LONG VARCHAR":
		c.sqlType, c.size = sqlcli.TypeLongVarchar, unbounded
	case "NTEXT", "NCLOB", "LONG NVARCHAR":
		c.sqlType, c.size = sqlcli.TypeWLongVarchar, unbounded
	case "BLOB", "LONG VARBINARY", "BYTEA":
		c.sqlType, c.size = sqlcli.TypeLongVarBinary, unbounded
	case "BINARY":
		c.sqlType, c.size = sqlcli.TypeBinary, arg(0, 1)
	case "VARBINARY":
		c.sqlType, c.size = sqlcli.TypeVarBinary, arg(0, 255)
	case "DATE":
		c.sqlType, c.size = sqlcli.TypeDate, 10
	case "TIME":
		c.sqlType, c.size = sqlcli.TypeTime, 8
	case "TIMESTAMP", "DATETIME":
		c.sqlType, c.size = sqlcli.TypeTimestamp, 29
	case "BOOLEAN", "BOOL":
		c.sqlType, c.size = sqlcli.TypeBoolean, 1
	case "BIT":
		c.sqlType, c.size = sqlcli.TypeBit, 1
	case "":
		c.sqlType = sqlcli.TypeNull
	default:
		c.sqlType, c.size = sqlcli.TypeLongVarchar, unbounded
	}
	return c
}

// inferColumn types an expression column from the values it holds.
func inferColumn(c column, rows [][]any, index int) column {
	longest := 1
	for _, row := range rows {
		switch v := row[index].(type) {
		case nil:
			continue
		case int64:
			c.sqlType, c.size = sqlcli.TypeBigInt, 19
			return c
		case float64:
			c.sqlType, c.size = sqlcli.TypeDouble, 15
			return c
		case bool:
			c.sqlType, c.size = sqlcli.TypeBit, 1
			return c
		case time.Time:
			c.sqlType, c.size = sqlcli.TypeTimestamp, 29
			return c
		case []byte:
			c.sqlType, c.size = sqlcli.TypeLongVarBinary, unbounded
			return c
		case string:
			longest = max(longest, len(v))
		}
	}
	c.sqlType, c.size = sqlcli.TypeVarchar, longest
	return c
}

// attributes returns the display size and octet length of a column.
func (c column) attributes() (display, octet int64) {
	switch c.sqlType {
	case sqlcli.TypeInteger:
		return 11, 4
	case sqlcli.TypeBigInt:
		return 20, 8
	case sqlcli.TypeSmallInt:
		return 6, 2
	case sqlcli.TypeTinyInt:
		return 4, 1
	case sqlcli.TypeReal:
		return 14, 4
	case sqlcli.TypeFloat, sqlcli.TypeDouble:
		return 24, 8
	case sqlcli.TypeDecimal, sqlcli.TypeNumeric:
		return int64(c.size) + 2, int64(c.size) + 2
	case sqlcli.TypeChar, sqlcli.TypeVarchar:
		// UTF-8 needs up to four bytes per character.
		return int64(c.size), int64(c.size) * 4
	case sqlcli.TypeWChar, sqlcli.TypeWVarchar:
		return int64(c.size), int64(c.size) * 4
	case sqlcli.TypeBinary, sqlcli.TypeVarBinary:
		return int64(c.size) * 2, int64(c.size)
	case sqlcli.TypeLongVarchar, sqlcli.TypeWLongVarchar, sqlcli.TypeLongVarBinary:
		return unbounded, unbounded
	case sqlcli.TypeDate:
		return 10, 6
	case sqlcli.TypeTime:
		return 8, 6
	case sqlcli.TypeTimestamp:
		return 29, 16
	case sqlcli.TypeBit, sqlcli.TypeBoolean:
		return 1, 1
	}
	return int64(c.size), int64(c.size)
}
