package domain_test

import (
	"errors"
	"testing"

	"legend-tracker/internal/domain"

	"github.com/smartystreets/goconvey/convey"
)

func TestNormalizeTag(t *testing.T) {
	convey.Convey("Given raw player tags", t, func() {
		convey.Convey("When the tag has a hash and lower case letters", func() {
			tag, err := domain.NormalizeTag(" #2pp0lq8 ")

			convey.Convey("Then it is stripped and upper-cased", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(tag, convey.ShouldEqual, "2PP0LQ8")
			})
		})

		convey.Convey("When the tag is empty or has symbols", func() {
			_, errEmpty := domain.NormalizeTag("#")
			_, errSym := domain.NormalizeTag("AB-C")

			convey.Convey("Then it is rejected", func() {
				convey.So(errors.Is(errEmpty, domain.ErrInvalidTag), convey.ShouldBeTrue)
				convey.So(errors.Is(errSym, domain.ErrInvalidTag), convey.ShouldBeTrue)
			})
		})
	})
}

func TestRegistryValidate(t *testing.T) {
	convey.Convey("Given a registry document", t, func() {
		reg := domain.NewRegistry()
		reg.Players["ABC"] = &domain.PlayerRecord{
			Tag:  "ABC",
			Name: "alice",
			LegendLog: map[domain.DayKey]*domain.DayLog{
				"2025-06-30": {Attack: []int{40}, Defense: []int{}},
			},
		}

		convey.Convey("When it is well formed", func() {
			convey.So(reg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When the players mapping is missing", func() {
			reg.Players = nil
			convey.So(errors.Is(reg.Validate(), domain.ErrDataShape), convey.ShouldBeTrue)
		})

		convey.Convey("When a key does not match the record tag", func() {
			reg.Players["XYZ"] = &domain.PlayerRecord{Tag: "ABC"}
			convey.So(errors.Is(reg.Validate(), domain.ErrDataShape), convey.ShouldBeTrue)
		})

		convey.Convey("When a day key is not a date", func() {
			reg.Players["ABC"].LegendLog["yesterday"] = &domain.DayLog{}
			convey.So(errors.Is(reg.Validate(), domain.ErrDataShape), convey.ShouldBeTrue)
		})

		convey.Convey("When an entry is not positive", func() {
			reg.Players["ABC"].LegendLog["2025-06-30"].Defense = []int{0}
			convey.So(errors.Is(reg.Validate(), domain.ErrDataShape), convey.ShouldBeTrue)
		})
	})
}

func TestSeasonValidate(t *testing.T) {
	convey.Convey("Given a season document", t, func() {
		season := domain.NewSeason()

		convey.Convey("When the reset state is unknown", func() {
			season.Reset.State = "maybe"
			convey.So(errors.Is(season.Validate(), domain.ErrDataShape), convey.ShouldBeTrue)
		})

		convey.Convey("When a player's seasonal days are null", func() {
			season.Players["ABC"] = nil
			convey.So(errors.Is(season.Validate(), domain.ErrDataShape), convey.ShouldBeTrue)
		})

		convey.Convey("When a seasonal day is null", func() {
			season.Players["ABC"] = map[domain.DayKey]*domain.SeasonDay{"2025-06-30": nil}
			convey.So(errors.Is(season.Validate(), domain.ErrDataShape), convey.ShouldBeTrue)
		})
	})
}

func TestDayLogArchive(t *testing.T) {
	convey.Convey("Given a live day log", t, func() {
		start := 5000
		log := &domain.DayLog{Attack: []int{40, 40}, Defense: []int{12}, StartTrophies: &start}

		convey.Convey("When it is archived", func() {
			sd := log.Archive()
			log.Attack[0] = 99
			start = 1

			convey.Convey("Then the archive does not share memory with the live log", func() {
				convey.So(sd.Offense, convey.ShouldResemble, []int{40, 40})
				convey.So(sd.Defense, convey.ShouldResemble, []int{12})
				convey.So(*sd.StartTrophies, convey.ShouldEqual, 5000)
			})
		})
	})
}
