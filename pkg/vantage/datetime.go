package vantage

import "time"

// DateStamp packs a calendar date into the 16-bit Davis date bitfield:
// day | month<<5 | (year-2000)<<9.
func DateStamp(t time.Time) uint16 {
	return uint16(t.Day()) | uint16(t.Month())<<5 | uint16(t.Year()-2000)<<9
}

// TimeStamp packs a time of day into the 16-bit Davis time field,
// hour*100 + minute.
func TimeStamp(t time.Time) uint16 {
	return uint16(t.Hour()*100 + t.Minute())
}

// DecodeStamp converts a Davis date+time pair back to local wall-clock
// time. ok is false when the fields do not form a valid calendar date,
// which callers treat the same as a zero timestamp.
func DecodeStamp(date, tod uint16) (t time.Time, ok bool) {
	day := int(date & 0x1F)
	month := int((date >> 5) & 0x0F)
	year := int(date>>9) + 2000
	hour := int(tod / 100)
	minute := int(tod % 100)

	if day < 1 || day > 31 || month < 1 || month > 12 || hour > 23 || minute > 59 {
		return time.Time{}, false
	}
	t = time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.Local)
	// time.Date normalizes out-of-range days (Feb 30 -> Mar 2); reject those.
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

// davisTimeOfDay converts an epoch to the hour*100+minute encoding used
// by the LOOP sunrise/sunset fields. A zero epoch stays zero.
func davisTimeOfDay(epoch int64) uint16 {
	if epoch == 0 {
		return 0
	}
	t := time.Unix(epoch, 0)
	return uint16(t.Hour()*100 + t.Minute())
}

// windDirCode maps a wind direction in degrees to the 16-point compass
// code stored in archive records; 255 marks a missing direction.
func windDirCode(dir *float64) byte {
	if dir == nil {
		return DashByte
	}
	return byte(int(*dir/22.5+0.5) % 16)
}

// ConsoleTime packs the six-byte GETTIME/SETTIME payload:
// sec, min, hour, day, month, year-1900.
func ConsoleTime(t time.Time) [6]byte {
	return [6]byte{
		byte(t.Second()),
		byte(t.Minute()),
		byte(t.Hour()),
		byte(t.Day()),
		byte(t.Month()),
		byte(t.Year() - 1900),
	}
}

// DecodeConsoleTime is the inverse of ConsoleTime.
func DecodeConsoleTime(p [6]byte) time.Time {
	return time.Date(int(p[5])+1900, time.Month(p[4]), int(p[3]),
		int(p[2]), int(p[1]), int(p[0]), 0, time.Local)
}
