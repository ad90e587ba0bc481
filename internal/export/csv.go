package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/samber/lo"

	"github.com/limaJavier/roomallocation/pkg/allocation"
	"github.com/limaJavier/roomallocation/pkg/model"
)

// RecordRow is one occupied (room, slot) cell of the allocation
type RecordRow struct {
	Demand     uint64 `csv:"demand"`
	DemandName string `csv:"demand_name"`
	Room       uint64 `csv:"room"`
	RoomName   string `csv:"room_name"`
	Building   string `csv:"building"`
	Professor  uint64 `csv:"professor"`
	Day        string `csv:"day"`
	Block      string `csv:"block"`
	Score      string `csv:"score"`
	Pinned     bool   `csv:"pinned"`
}

type UnplacedRow struct {
	Demand        uint64 `csv:"demand"`
	DemandName    string `csv:"demand_name"`
	Enrollment    uint64 `csv:"enrollment"`
	Reason        string `csv:"reason"`
	EligibleRooms int    `csv:"eligible_rooms"`
}

// RecordRows flattens the placements of report into one row per slot, in demand then slot order. Names are
// looked up in input and left blank when unknown.
func RecordRows(report *allocation.Report, input allocation.Input) []*RecordRow {
	rooms := model.RoomsById(input.Rooms)
	demands := model.DemandsById(input.Demands)

	return lo.FlatMap(report.Placed, func(placement allocation.Placement, _ int) []*RecordRow {
		return lo.Map(placement.Slots, func(slot model.TimeSlot, _ int) *RecordRow {
			day, block := slotNames(input.Catalog, slot)
			return &RecordRow{
				Demand:     placement.Demand,
				DemandName: demands[placement.Demand].Name,
				Room:       placement.Room,
				RoomName:   rooms[placement.Room].Name,
				Building:   rooms[placement.Room].Building,
				Professor:  placement.Professor,
				Day:        day,
				Block:      block,
				Score:      placement.Score.String(),
				Pinned:     placement.Pinned,
			}
		})
	})
}

func UnplacedRows(report *allocation.Report, input allocation.Input) []*UnplacedRow {
	demands := model.DemandsById(input.Demands)

	return lo.Map(report.Unplaced, func(unplacement allocation.Unplacement, _ int) *UnplacedRow {
		return &UnplacedRow{
			Demand:        unplacement.Demand,
			DemandName:    demands[unplacement.Demand].Name,
			Enrollment:    demands[unplacement.Demand].Enrollment,
			Reason:        string(unplacement.Reason),
			EligibleRooms: unplacement.EligibleRooms,
		}
	})
}

func WriteRecords(writer io.Writer, report *allocation.Report, input allocation.Input) error {
	rows := RecordRows(report, input)
	return gocsv.Marshal(&rows, writer)
}

func WriteUnplaced(writer io.Writer, report *allocation.Report, input allocation.Input) error {
	rows := UnplacedRows(report, input)
	return gocsv.Marshal(&rows, writer)
}

// WriteFiles writes the records to path and the unplaced demands next to it, suffixed with "_unplaced".
// Existing files are overwritten. It returns the path of the unplaced file.
func WriteFiles(path string, report *allocation.Report, input allocation.Input) (string, error) {
	if err := writeFile(path, func(file *os.File) error { return WriteRecords(file, report, input) }); err != nil {
		return "", fmt.Errorf("export records: %w", err)
	}

	unplacedPath := UnplacedPath(path)
	if err := writeFile(unplacedPath, func(file *os.File) error { return WriteUnplaced(file, report, input) }); err != nil {
		return "", fmt.Errorf("export unplaced demands: %w", err)
	}
	return unplacedPath, nil
}

// UnplacedPath derives "out/records_unplaced.csv" from "out/records.csv"
func UnplacedPath(path string) string {
	extension := filepath.Ext(path)
	return strings.TrimSuffix(path, extension) + "_unplaced" + lo.Ternary(extension == "", ".csv", extension)
}

func writeFile(path string, write func(file *os.File) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := write(file); err != nil {
		return err
	}
	return file.Close()
}

func slotNames(catalog model.Catalog, slot model.TimeSlot) (string, string) {
	if !catalog.Contains(slot) {
		return fmt.Sprint(slot.Day), fmt.Sprint(slot.Block)
	}
	return catalog.Days[slot.Day], catalog.Blocks[slot.Block]
}
