package tripfile

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikeshare-platform/internal/models"
)

const washingtonSample = "\ufeffDuration (ms),Start date,End date,Start station number,Start station,Member Type\n" +
	"427387,3/31/2016 22:57,3/31/2016 23:04,31602,\"Park Rd & Holmead Pl NW\",Registered\n" +
	"366410,3/31/2016 22:17,3/31/2016 22:23,31105,\"14th & Harvard St, NW\",Casual\n"

func TestRawReader(t *testing.T) {
	reader, err := NewRawReader(strings.NewReader(washingtonSample))
	require.NoError(t, err)

	assert.Equal(t, []string{"Duration (ms)", "Start date", "End date", "Start station number", "Start station", "Member Type"}, reader.Header())

	first, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "427387", first["Duration (ms)"])
	assert.Equal(t, "Registered", first["Member Type"])
	assert.Equal(t, 2, reader.Line())

	second, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "14th & Harvard St, NW", second["Start station"])
	assert.Equal(t, "Casual", second["Member Type"])

	_, err = reader.Next()
	assert.Equal(t, io.EOF, err)
}

func TestRawReader_MalformedRowContinues(t *testing.T) {
	input := "tripduration,starttime,usertype\n" +
		"839,1/1/2016 00:09:55\n" +
		"926,3/31/2016 23:30,Subscriber\n"

	reader, err := NewRawReader(strings.NewReader(input))
	require.NoError(t, err)

	_, err = reader.Next()
	var parseErr *models.ParseError
	require.ErrorAs(t, err, &parseErr)

	record, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "926", record["tripduration"])
	assert.Equal(t, 3, reader.Line())
}

func TestRawReader_EmptyInput(t *testing.T) {
	_, err := NewRawReader(strings.NewReader(""))
	assert.Error(t, err)
}

func TestCanonicalWriter(t *testing.T) {
	var buf bytes.Buffer
	writer, err := NewCanonicalWriter(&buf)
	require.NoError(t, err)

	trips := []*models.CanonicalTrip{
		{DurationMinutes: 839.0 / 60.0, Month: 1, Hour: 0, DayOfWeek: "Friday", UserType: "Customer"},
		{DurationMinutes: 7.123116666666666, Month: 3, Hour: 22, DayOfWeek: "Thursday", UserType: "Subscriber"},
		{DurationMinutes: 15, Month: 12, Hour: 23, DayOfWeek: "Saturday", UserType: "Sub, scriber"},
	}
	for _, trip := range trips {
		require.NoError(t, writer.Write(trip))
	}
	require.NoError(t, writer.Flush())
	assert.Equal(t, 3, writer.Count())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "duration,month,hour,day_of_week,user_type", lines[0])
	assert.Equal(t, "13.983333333333333,1,0,Friday,Customer", lines[1])
	assert.Equal(t, "15,12,23,Saturday,\"Sub, scriber\"", lines[3])

	reader, err := NewCanonicalReader(&buf)
	require.NoError(t, err)
	for _, want := range trips {
		got, err := reader.Next()
		require.NoError(t, err)
		assert.Equal(t, *want, *got)
	}
	_, err = reader.Next()
	assert.Equal(t, io.EOF, err)
}

func TestCanonicalReader_HeaderMismatch(t *testing.T) {
	_, err := NewCanonicalReader(strings.NewReader("duration,month,hour,weekday,user_type\n"))
	var validationErr *models.ValidationError
	assert.ErrorAs(t, err, &validationErr)

	_, err = NewCanonicalReader(strings.NewReader(""))
	assert.Error(t, err)
}

func TestParseTrip(t *testing.T) {
	tests := []struct {
		name    string
		fields  []string
		wantErr string
	}{
		{name: "valid", fields: []string{"1.5", "3", "22", "Thursday", "Subscriber"}},
		{name: "garbage user type passes", fields: []string{"1.5", "3", "22", "Thursday", "Dependent"}},
		{name: "short row", fields: []string{"1.5", "3"}, wantErr: "parse_error"},
		{name: "bad duration", fields: []string{"x", "3", "22", "Thursday", "Subscriber"}, wantErr: "parse_error"},
		{name: "NaN duration", fields: []string{"NaN", "3", "22", "Thursday", "Subscriber"}, wantErr: "parse_error"},
		{name: "infinite duration", fields: []string{"+Inf", "3", "22", "Thursday", "Subscriber"}, wantErr: "parse_error"},
		{name: "bad month", fields: []string{"1.5", "March", "22", "Thursday", "Subscriber"}, wantErr: "parse_error"},
		{name: "month out of range", fields: []string{"1.5", "13", "22", "Thursday", "Subscriber"}, wantErr: "validation_error"},
		{name: "bad hour", fields: []string{"1.5", "3", "", "Thursday", "Subscriber"}, wantErr: "parse_error"},
		{name: "hour out of range", fields: []string{"1.5", "3", "24", "Thursday", "Subscriber"}, wantErr: "validation_error"},
		{name: "unknown weekday", fields: []string{"1.5", "3", "22", "Thu", "Subscriber"}, wantErr: "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trip, err := ParseTrip(tt.fields)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.fields[4], trip.UserType)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, models.ErrorKind(err))
		})
	}
}
