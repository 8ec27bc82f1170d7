package calendar

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"
)

const dateFormat = "20060102"

// Calendar answers whether a date is an official holiday.
type Calendar interface {
	IsHoliday(date time.Time) bool
}

// NoHolidays is the default calendar; no date is a holiday.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(time.Time) bool { return false }

// FileCalendar is a holiday calendar loaded from a plain-text file with one
// yyyymmdd date per line. Blank lines and lines starting with '#' are ignored.
type FileCalendar struct {
	days map[string]struct{}
}

// LoadFile reads a holiday file into a FileCalendar.
func LoadFile(path string) (*FileCalendar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("holidays: %w", err)
	}
	defer f.Close()

	c := &FileCalendar{days: make(map[string]struct{})}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		d, err := time.Parse(dateFormat, line)
		if err != nil {
			return nil, fmt.Errorf("holidays: parsing %q in %s: %w", line, path, err)
		}
		c.days[d.Format(dateFormat)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("holidays: reading %s: %w", path, err)
	}
	return c, nil
}

func (c *FileCalendar) IsHoliday(date time.Time) bool {
	_, ok := c.days[date.Format(dateFormat)]
	return ok
}

// Len returns the number of loaded holidays.
func (c *FileCalendar) Len() int { return len(c.days) }
