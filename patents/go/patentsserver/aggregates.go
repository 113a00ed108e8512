package main

import (
	"sort"

	"github.com/atalyaalon/patents-topic-modeling/patents/go/artifacts"
	"github.com/atalyaalon/patents-topic-modeling/patents/go/patentsserver/rpc"
	"github.com/atalyaalon/patents-topic-modeling/patents/go/topics"
)

// topTopics returns the n largest topics by patent count, in descending
// count order. The no-topic sentinel row is excluded.
func topTopics(counts []artifacts.TopicCount, n int) []artifacts.TopicCount {
	out := make([]artifacts.TopicCount, 0, len(counts))
	for _, c := range counts {
		if c.TopicID == topics.NoTopic {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// countsPerYear sums the per-(topic, year) counts into a total count per
// filing year, in ascending year order.
func countsPerYear(byYear []artifacts.TopicYearCount) []rpc.YearCount {
	totals := map[int]int{}
	for _, row := range byYear {
		totals[row.Year] += row.Count
	}
	out := make([]rpc.YearCount, 0, len(totals))
	for year, count := range totals {
		out = append(out, rpc.YearCount{Year: year, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Year < out[j].Year
	})
	return out
}

// topicStatusSlices splits the corpus into patents with an assigned topic
// and patents on the no-topic sentinel.
func topicStatusSlices(counts []artifacts.TopicCount) []rpc.TopicStatusSlice {
	withTopic := 0
	noTopic := 0
	for _, c := range counts {
		if c.TopicID == topics.NoTopic {
			noTopic += c.Count
		} else {
			withTopic += c.Count
		}
	}
	return []rpc.TopicStatusSlice{
		{Status: "Topic assigned", Count: withTopic},
		{Status: "No topic", Count: noTopic},
	}
}

// trendSeries extracts the time series of the given topics from the
// per-(topic, year) counts table. Series keep the order of topicIDs, and
// points within a series are in ascending year order. Topics absent from
// the table yield an empty series rather than being dropped, so a stale
// config is visible on the chart.
func trendSeries(byYear []artifacts.TopicYearCount, topicIDs []int) []rpc.TrendSeries {
	out := make([]rpc.TrendSeries, 0, len(topicIDs))
	for _, id := range topicIDs {
		series := rpc.TrendSeries{TopicID: id}
		for _, row := range byYear {
			if row.TopicID != id {
				continue
			}
			series.TopicWords = row.TopicWords
			series.Points = append(series.Points, rpc.TrendPoint{
				Year:  row.Year,
				Count: row.Count,
			})
		}
		sort.Slice(series.Points, func(i, j int) bool {
			return series.Points[i].Year < series.Points[j].Year
		})
		out = append(out, series)
	}
	return out
}
