package tree

import "context"

// CumulativeCount 子树（含自身）内的员工总数
func (q *Query) CumulativeCount(ctx context.Context, id int64) (int64, error) {
	s, err := q.SubtreeStats(ctx, id)
	if err != nil {
		return 0, err
	}
	return s.Employees, nil
}

// SubtreeStats 子树（含自身）内的员工数与薪资总额
func (q *Query) SubtreeStats(ctx context.Context, id int64) (Stats, error) {
	if _, err := q.store.Node(ctx, id); err != nil {
		return Stats{}, err
	}
	all, err := q.store.Aggregate(ctx, []int64{id})
	if err != nil {
		return Stats{}, err
	}
	return all[id], nil
}

// AnnotateStats 一次查询为一组节点计算子树统计，结果中每个节点都有对应项
func (q *Query) AnnotateStats(ctx context.Context, nodes []Node) (map[int64]Stats, error) {
	out := make(map[int64]Stats, len(nodes))
	if len(nodes) == 0 {
		return out, nil
	}

	ids := make([]int64, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	all, err := q.store.Aggregate(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = all[id]
	}
	return out, nil
}
