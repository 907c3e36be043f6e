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

package normalizing

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"math"
	"net"
	"net/netip"
	"time"
	"unicode/utf8"

	"github.com/go-errors/errors"
	"github.com/hashicorp/go-uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/noctarius/cdc-relay/spi/values"
	"github.com/shopspring/decimal"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

var (
	microsPerHour = time.Hour.Microseconds()
	microsPerDay  = microsPerHour * 24

	avgDaysPerMonth       = 365.25 / 12
	avgMicrosDaysPerMonth = avgDaysPerMonth * float64(microsPerDay)

	timestampAsTextFormat = "2006-01-02T15:04:05.999999"
)

// converter returns handled=false when the value isn't
// a type it knows, so the next converter is asked.
type converter = func(value any) (result values.Value, handled bool, err error)

func time2text(
	value any,
) (values.Value, bool, error) {

	switch v := value.(type) {
	case time.Time:
		return values.String(v.In(time.UTC).Format(time.RFC3339Nano)), true, nil
	case *time.Time:
		if v == nil {
			return values.Null(), true, nil
		}
		return values.String(v.In(time.UTC).Format(time.RFC3339Nano)), true, nil
	case time.Duration:
		return values.Integer(v.Microseconds()), true, nil
	}
	return values.Value{}, false, nil
}

func decimal2text(
	value any,
) (values.Value, bool, error) {

	switch v := value.(type) {
	case decimal.Decimal:
		return values.String(v.String()), true, nil
	case decimal.NullDecimal:
		if !v.Valid {
			return values.Null(), true, nil
		}
		return values.String(v.Decimal.String()), true, nil
	}
	return values.Value{}, false, nil
}

func uuid2text(
	value any,
) (values.Value, bool, error) {

	var raw []byte
	switch v := value.(type) {
	case pgtype.UUID:
		if !v.Valid {
			return values.Null(), true, nil
		}
		raw = v.Bytes[:]
	case [16]byte:
		raw = v[:]
	default:
		return values.Value{}, false, nil
	}

	u, err := uuid.FormatUUID(raw)
	if err != nil {
		return values.Value{}, true, errors.Wrap(err, 0)
	}
	return values.String(u), true, nil
}

func address2text(
	value any,
) (values.Value, bool, error) {

	switch v := value.(type) {
	case net.HardwareAddr:
		return values.String(v.String()), true, nil
	case net.IP:
		return values.String(v.String()), true, nil
	case netip.Addr:
		return values.String(v.String()), true, nil
	case netip.Prefix:
		return values.String(v.String()), true, nil
	}
	return values.Value{}, false, nil
}

func geometry2geojson(
	value any,
) (values.Value, bool, error) {

	g, ok := value.(geom.T)
	if !ok {
		return values.Value{}, false, nil
	}

	data, err := geojson.Marshal(g)
	if err != nil {
		return values.Value{}, true, errors.Wrap(err, 0)
	}

	var result values.Value
	if err := result.UnmarshalJSON(data); err != nil {
		return values.Value{}, true, err
	}
	return result, true, nil
}

func bytes2hexstring(
	value any,
) (values.Value, bool, error) {

	if v, ok := value.([]byte); ok {
		if v == nil {
			return values.Null(), true, nil
		}
		return values.String(hex.EncodeToString(v)), true, nil
	}
	return values.Value{}, false, nil
}

// MySQL drivers hand out textual columns as raw bytes
func bytes2text(
	value any,
) (values.Value, bool, error) {

	if v, ok := value.([]byte); ok {
		if v == nil {
			return values.Null(), true, nil
		}
		if utf8.Valid(v) {
			return values.String(string(v)), true, nil
		}
		return values.String(hex.EncodeToString(v)), true, nil
	}
	return values.Value{}, false, nil
}

// float2text renders non-finite floats the way PostgreSQL
// prints them, JSON has no representation for them.
func float2text(
	value any,
) (values.Value, bool, error) {

	var f float64
	switch v := value.(type) {
	case float32:
		f = float64(v)
	case float64:
		f = v
	default:
		return values.Value{}, false, nil
	}

	switch {
	case math.IsNaN(f):
		return values.String("NaN"), true, nil
	case math.IsInf(f, 1):
		return values.String("Infinity"), true, nil
	case math.IsInf(f, -1):
		return values.String("-Infinity"), true, nil
	}
	return values.Value{}, false, nil
}

func pgnumeric2text(
	value any,
) (values.Value, bool, error) {

	v, ok := value.(pgtype.Numeric)
	if !ok {
		return values.Value{}, false, nil
	}

	switch {
	case !v.Valid:
		return values.Null(), true, nil
	case v.NaN:
		return values.String("NaN"), true, nil
	case v.InfinityModifier == pgtype.Infinity:
		return values.String("Infinity"), true, nil
	case v.InfinityModifier == pgtype.NegativeInfinity:
		return values.String("-Infinity"), true, nil
	case v.Int == nil:
		return values.String("0"), true, nil
	}
	return values.String(decimal.NewFromBigInt(v.Int, v.Exp).String()), true, nil
}

func pginterval2int64(
	value any,
) (values.Value, bool, error) {

	v, ok := value.(pgtype.Interval)
	if !ok {
		return values.Value{}, false, nil
	}
	if !v.Valid {
		return values.Null(), true, nil
	}
	return values.Integer(
		v.Microseconds +
			(int64(v.Days) * microsPerDay) +
			int64(math.Round(float64(v.Months)*avgMicrosDaysPerMonth)),
	), true, nil
}

func pgtime2text(
	value any,
) (values.Value, bool, error) {

	switch v := value.(type) {
	case pgtype.Date:
		if !v.Valid {
			return values.Null(), true, nil
		}
		if v.InfinityModifier != pgtype.Finite {
			return values.String(v.InfinityModifier.String()), true, nil
		}
		return values.String(v.Time.Format(time.DateOnly)), true, nil
	case pgtype.Timestamp:
		if !v.Valid {
			return values.Null(), true, nil
		}
		if v.InfinityModifier != pgtype.Finite {
			return values.String(v.InfinityModifier.String()), true, nil
		}
		return values.String(v.Time.In(time.UTC).Format(timestampAsTextFormat)), true, nil
	case pgtype.Timestamptz:
		if !v.Valid {
			return values.Null(), true, nil
		}
		if v.InfinityModifier != pgtype.Finite {
			return values.String(v.InfinityModifier.String()), true, nil
		}
		return values.String(v.Time.In(time.UTC).Format(time.RFC3339Nano)), true, nil
	case pgtype.Time:
		if !v.Valid {
			return values.Null(), true, nil
		}
		return values.String(micros2text(v.Microseconds)), true, nil
	}
	return values.Value{}, false, nil
}

func pgbits2text(
	value any,
) (values.Value, bool, error) {

	v, ok := value.(pgtype.Bits)
	if !ok {
		return values.Value{}, false, nil
	}
	if !v.Valid {
		return values.Null(), true, nil
	}

	bits := make([]byte, 0, v.Len)
	remaining := v.Len
	for _, b := range v.Bytes {
		length := min(remaining, 8)
		for i := int32(0); i < length; i++ {
			bits = append(bits, '0'+(b>>(7-i)&1))
		}
		remaining -= length
	}
	return values.String(string(bits)), true, nil
}

// valuer2value unwraps anything implementing driver.Valuer,
// which covers the remaining pgtype wrappers (Text, Int8,
// Bool, Float8, ...) and sql.Null* types.
func valuer2value(
	normalize func(value any) (values.Value, error),
) converter {

	return func(value any) (values.Value, bool, error) {
		v, ok := value.(driver.Valuer)
		if !ok {
			return values.Value{}, false, nil
		}
		unwrapped, err := v.Value()
		if err != nil {
			return values.Value{}, true, errors.Wrap(err, 0)
		}
		if _, same := unwrapped.(driver.Valuer); same {
			return values.Value{}, true, errors.Errorf("%T unwraps into another driver.Valuer", value)
		}
		result, err := normalize(unwrapped)
		return result, true, err
	}
}

func micros2text(
	micros int64,
) string {

	remaining := int64(time.Microsecond) * micros
	hours := remaining / int64(time.Hour)
	remaining = remaining % int64(time.Hour)
	minutes := remaining / int64(time.Minute)
	remaining = remaining % int64(time.Minute)
	seconds := remaining / int64(time.Second)
	remaining = remaining % int64(time.Second)
	return fmt.Sprintf(
		"%02d:%02d:%02d.%06d", hours, minutes, seconds,
		(time.Nanosecond * time.Duration(remaining)).Microseconds(),
	)
}
